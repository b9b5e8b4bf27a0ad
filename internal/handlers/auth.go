package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tubestream/backend/internal/auth"
	"github.com/tubestream/backend/internal/logging"
	"github.com/tubestream/backend/internal/models"
	"github.com/tubestream/backend/internal/repositories"
)

// AuthHandler implements registration, login and password reset endpoints.
type AuthHandler struct {
	Users   UserStore
	Tokens  TokenService
	Limiter RateLimiter
	NowFunc func() time.Time
}

// Register handles POST /api/users/register requests.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	if !allowRequest(h.Limiter, r, "register") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests, slow down"})
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	// Validation failures accumulate so the client sees every problem at once.
	errs := fieldErrors{}
	if req.Username == "" {
		errs.add("username", "Username is required")
	} else if n := utf8.RuneCountInString(req.Username); n < 3 {
		errs.add("username", "Username must be at least 3 characters")
	} else if n > 30 {
		errs.add("username", "Username must be at most 30 characters")
	}
	if req.Email == "" {
		errs.add("email", "Email is required")
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		errs.add("email", "Please include a valid email")
	}
	if req.Password == "" {
		errs.add("password", "Password is required")
	} else if len(req.Password) < 6 {
		errs.add("password", "Password must be at least 6 characters")
	}
	if errs.respond(ctx, w) {
		logger.Warn("register validation failed", "fields", len(errs))
		return
	}

	existing, err := h.Users.FindByEmailOrUsername(ctx, req.Email, req.Username)
	switch {
	case err == nil:
		message := "Username already in use"
		if strings.EqualFold(existing.Email, req.Email) {
			message = "Email already in use"
		}
		logger.Warn("register duplicate account", "email", req.Email, "username", req.Username)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": message})
		return
	case !errors.Is(err, repositories.ErrNotFound):
		logger.Error("register user lookup failed", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify existing accounts"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to secure password"})
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashed,
		Avatar:    models.AvatarGlyph(req.Username),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("register conflict", "email", req.Email, "username", req.Username)
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Email already in use"})
			return
		}
		logger.Error("register failed to create user", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create account"})
		return
	}

	logger.Info("user registered", "userId", user.ID, "username", user.Username)
	respondJSON(ctx, w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

// Login handles POST /api/users/login requests. Clients authenticate with
// either their email or their username, never both.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	if !allowRequest(h.Limiter, r, "login") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests, slow down"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	errs := fieldErrors{}
	switch {
	case req.Email == "" && req.Username == "":
		errs.add("identifier", "Email or username is required")
	case req.Email != "" && req.Username != "":
		errs.add("identifier", "Use either email or username (not both)")
	}
	if req.Password == "" {
		errs.add("password", "Password is required")
	}
	if errs.respond(ctx, w) {
		logger.Warn("login validation failed", "fields", len(errs))
		return
	}

	var (
		user     models.User
		err      error
		notFound string
	)
	if req.Email != "" {
		user, err = h.Users.FindByEmail(ctx, req.Email)
		notFound = "Email not found"
	} else {
		user, err = h.Users.FindByUsername(ctx, req.Username)
		notFound = "Username not found"
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("login unknown account", "email", req.Email, "username", req.Username)
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": notFound})
			return
		}
		logger.Error("login user lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify credentials"})
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Invalid password"})
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Username)
	if err != nil {
		logger.Error("failed to issue token", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	logger.Info("user logged in", "userId", user.ID)
	respondJSON(ctx, w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Token:   token,
		User:    user.PublicProfile(),
	})
}

// ForgotPassword handles POST /api/users/forgot-password requests. Instead of
// exposing account identifiers, it answers with a short-lived reset token the
// client presents back to ResetPassword.
func (h AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	if !allowRequest(h.Limiter, r, "forgot") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests, slow down"})
		return
	}

	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid forgot-password payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Email is required"})
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("forgot-password unknown email", "email", req.Email)
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "Email not found"})
			return
		}
		logger.Error("forgot-password lookup failed", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to process password reset"})
		return
	}

	resetToken, err := h.Tokens.IssueReset(user.ID)
	if err != nil {
		logger.Error("failed to issue reset token", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to process password reset"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"resetToken": resetToken})
}

// ResetPassword handles PUT /api/users/reset-password requests.
func (h AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset-password payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.ResetToken = strings.TrimSpace(req.ResetToken)
	if req.ResetToken == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Reset token is required"})
		return
	}
	if len(req.NewPassword) < 6 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "Password must be at least 6 characters"})
		return
	}

	userID, err := h.Tokens.VerifyReset(req.ResetToken)
	if err != nil {
		logger.Warn("reset-password token rejected", "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "Token is not valid"})
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("reset-password failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to secure password"})
		return
	}

	if err := h.Users.UpdatePassword(ctx, userID, hashed, h.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "User not found"})
			return
		}
		logger.Error("reset-password update failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to reset password"})
		return
	}

	logger.Info("password reset", "userId", userID)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

type loginResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    models.PublicUser `json:"user"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
