package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tubestream/backend/internal/auth"
	"github.com/tubestream/backend/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func registeredUser(t *testing.T) models.User {
	t.Helper()
	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return models.User{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@example.com",
		Password: hash,
	}
}

func postJSON(t *testing.T, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
}

func TestRegisterCreatesUser(t *testing.T) {
	users := newUserStoreFake()
	handler := AuthHandler{Users: users, Tokens: &tokenServiceStub{}, NowFunc: fixedNow}

	req := postJSON(t, "/api/users/register", map[string]string{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "hunter22",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d want %d body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "User registered successfully" {
		t.Fatalf("unexpected message %q", resp["message"])
	}

	stored, err := users.FindByUsername(t.Context(), "alice")
	if err != nil {
		t.Fatalf("stored user not found: %v", err)
	}
	if stored.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", stored.Email)
	}
	if stored.Password == "hunter22" {
		t.Fatal("password stored in plaintext")
	}
	if !auth.CheckPassword(stored.Password, "hunter22") {
		t.Fatal("stored hash does not verify")
	}
	if !stored.CreatedAt.Equal(fixedNow()) {
		t.Fatalf("unexpected created at: %v", stored.CreatedAt)
	}
	if stored.Avatar != "A" {
		t.Fatalf("expected avatar derived from username, got %q", stored.Avatar)
	}
}

func TestRegisterRejectsOverlongUsername(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/register", map[string]string{
		"username": strings.Repeat("a", 31),
		"email":    "long@example.com",
		"password": "hunter22",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Errors["username"] != "Username must be at most 30 characters" {
		t.Fatalf("unexpected field errors %v", resp.Errors)
	}
}

func TestRegisterAccumulatesValidationErrors(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/register", map[string]string{
		"username": "",
		"email":    "not-an-email",
		"password": "abc",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}

	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, field := range []string{"username", "email", "password"} {
		if resp.Errors[field] == "" {
			t.Fatalf("expected error for field %q, got %v", field, resp.Errors)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newUserStoreFake(registeredUser(t))
	handler := AuthHandler{Users: users, Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/register", map[string]string{
		"username": "someone_else",
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "Email already in use" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
	if len(users.users) != 1 {
		t.Fatalf("expected no new user, have %d", len(users.users))
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(registeredUser(t)), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/register", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "hunter22",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "Username already in use" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
}

func TestLoginWithUsername(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(registeredUser(t)), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/login", map[string]string{
		"username": "alice",
		"password": "hunter22",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "token-user-1-alice" {
		t.Fatalf("unexpected token %q", resp.Token)
	}
	if resp.User.ID != "user-1" || resp.User.Username != "alice" {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}
}

func TestLoginRejectsBothIdentifiers(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(registeredUser(t)), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/login", map[string]string{
		"email":    "alice@example.com",
		"username": "alice",
		"password": "hunter22",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Errors["identifier"] != "Use either email or username (not both)" {
		t.Fatalf("unexpected field errors %v", resp.Errors)
	}
}

func TestLoginRequiresIdentifierAndPassword(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/login", map[string]string{})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Errors["identifier"] != "Email or username is required" {
		t.Fatalf("unexpected identifier error %v", resp.Errors)
	}
	if resp.Errors["password"] != "Password is required" {
		t.Fatalf("unexpected password error %v", resp.Errors)
	}
}

func TestLoginUnknownUsername(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/login", map[string]string{
		"username": "ghost",
		"password": "whatever",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusNotFound)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "Username not found" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/login", map[string]string{
		"email":    "ghost@example.com",
		"password": "whatever",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusNotFound)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "Email not found" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
}

func TestLoginWrongPassword(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(registeredUser(t)), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "Invalid password" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
}

func TestForgotPasswordIssuesResetToken(t *testing.T) {
	tokens := &tokenServiceStub{}
	handler := AuthHandler{Users: newUserStoreFake(registeredUser(t)), Tokens: tokens}

	req := postJSON(t, "/api/users/forgot-password", map[string]string{"email": "alice@example.com"})
	rec := httptest.NewRecorder()

	handler.ForgotPassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["resetToken"] != "reset-user-1" {
		t.Fatalf("unexpected reset token %q", resp["resetToken"])
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/forgot-password", map[string]string{"email": "ghost@example.com"})
	rec := httptest.NewRecorder()

	handler.ForgotPassword(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestResetPasswordRoundTrip(t *testing.T) {
	users := newUserStoreFake(registeredUser(t))
	tokens := &tokenServiceStub{}
	handler := AuthHandler{Users: users, Tokens: tokens, NowFunc: fixedNow}

	resetToken, err := tokens.IssueReset("user-1")
	if err != nil {
		t.Fatalf("issue reset: %v", err)
	}

	req := postJSON(t, "/api/users/reset-password", map[string]string{
		"resetToken":  resetToken,
		"newPassword": "brand-new-pass",
	})
	req.Method = http.MethodPut
	rec := httptest.NewRecorder()

	handler.ResetPassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	stored, err := users.FindByID(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("user lookup: %v", err)
	}
	if !auth.CheckPassword(stored.Password, "brand-new-pass") {
		t.Fatal("new password does not verify")
	}
	if auth.CheckPassword(stored.Password, "hunter22") {
		t.Fatal("old password still verifies")
	}
}

func TestResetPasswordRejectsBadToken(t *testing.T) {
	handler := AuthHandler{Users: newUserStoreFake(registeredUser(t)), Tokens: &tokenServiceStub{}}

	req := postJSON(t, "/api/users/reset-password", map[string]string{
		"resetToken":  "forged",
		"newPassword": "brand-new-pass",
	})
	req.Method = http.MethodPut
	rec := httptest.NewRecorder()

	handler.ResetPassword(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "Token is not valid" {
		t.Fatalf("unexpected error %q", resp["error"])
	}
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func TestLoginRateLimited(t *testing.T) {
	handler := AuthHandler{
		Users:   newUserStoreFake(registeredUser(t)),
		Tokens:  &tokenServiceStub{},
		Limiter: denyAllLimiter{},
	}

	req := postJSON(t, "/api/users/login", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	req.RemoteAddr = "203.0.113.9:4411"
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusTooManyRequests)
	}
}
