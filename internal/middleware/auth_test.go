package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tubestream/backend/internal/auth"
	"github.com/tubestream/backend/internal/models"
	"github.com/tubestream/backend/internal/repositories"
)

type userResolverStub struct {
	users map[string]models.User
}

func (s userResolverStub) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func newAuthFixture(t *testing.T) (*auth.TokenIssuer, userResolverStub, string) {
	t.Helper()

	issuer := auth.NewTokenIssuer("test-secret", time.Hour, time.Minute)
	users := userResolverStub{users: map[string]models.User{
		"user-1": {ID: "user-1", Username: "alice", Email: "alice@example.com", Password: "hash"},
	}}

	token, err := issuer.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	return issuer, users, token
}

func identityEcho(t *testing.T, captured *models.PublicUser, found *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		*captured = identity
		*found = ok
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthAttachesIdentity(t *testing.T) {
	issuer, users, token := newAuthFixture(t)

	var identity models.PublicUser
	var ok bool
	handler := RequireAuth(issuer, users)(identityEcho(t, &identity, &ok))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "JWT "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if !ok || identity.ID != "user-1" || identity.Username != "alice" {
		t.Fatalf("unexpected identity: %+v found=%v", identity, ok)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	issuer, users, token := newAuthFixture(t)

	expired := auth.NewTokenIssuer("test-secret", time.Hour, time.Minute)
	expired.WithNowFunc(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expiredToken, err := expired.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}

	unknown, err := issuer.Issue("user-404", "ghost")
	if err != nil {
		t.Fatalf("issue unknown-user token: %v", err)
	}

	cases := []struct {
		name    string
		header  string
		message string
	}{
		{name: "missing header", header: "", message: "No token, authorization denied"},
		{name: "wrong scheme", header: "Bearer " + token, message: "No token, authorization denied"},
		{name: "garbage token", header: "JWT garbage", message: "Token is not valid"},
		{name: "expired token", header: "JWT " + expiredToken, message: "Token has expired"},
		{name: "unknown user", header: "JWT " + unknown, message: "Token is not valid"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireAuth(issuer, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not run")
			}))

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["message"] != tc.message {
				t.Fatalf("expected message %q got %q", tc.message, body["message"])
			}
		})
	}
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	issuer, users, token := newAuthFixture(t)

	var identity models.PublicUser
	var ok bool
	handler := OptionalAuth(issuer, users)(identityEcho(t, &identity, &ok))

	// Anonymous request proceeds without an identity.
	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if ok {
		t.Fatalf("expected anonymous request, got identity %+v", identity)
	}

	// Garbage token also proceeds anonymously.
	req = httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.Header.Set("Authorization", "JWT garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || ok {
		t.Fatalf("expected anonymous pass-through, status=%d identity=%v", rec.Code, ok)
	}

	// Valid token attaches the identity.
	req = httptest.NewRequest(http.MethodGet, "/videos", nil)
	req.Header.Set("Authorization", "JWT "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !ok || identity.ID != "user-1" {
		t.Fatalf("expected authenticated pass-through, status=%d identity=%+v", rec.Code, identity)
	}
}
