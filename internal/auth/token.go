package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed indicates the token could not be parsed or its signature
	// did not verify.
	ErrTokenMalformed = errors.New("token is not valid")
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token has expired")
)

const resetPurpose = "password_reset"

// Claims is the identity assertion carried by a verified bearer token.
type Claims struct {
	UserID   string
	Username string
}

type tokenClaims struct {
	Username string `json:"username,omitempty"`
	Purpose  string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the signed, self-contained bearer tokens
// used in place of server-side sessions. The only bound on a token's
// lifetime is its expiry; there is no revocation list.
type TokenIssuer struct {
	secret   []byte
	ttl      time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

// NewTokenIssuer constructs an issuer signing with the provided secret.
// Bearer tokens live for ttl, password-reset tokens for resetTTL.
func NewTokenIssuer(secret string, ttl, resetTTL time.Duration) *TokenIssuer {
	if secret == "" {
		panic("auth: token secret must not be empty")
	}
	return &TokenIssuer{
		secret:   []byte(secret),
		ttl:      ttl,
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

// Issue produces a signed bearer token embedding the user's identity.
func (t *TokenIssuer) Issue(userID, username string) (string, error) {
	if userID == "" {
		return "", errors.New("user id must be provided")
	}
	return t.sign(tokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(t.now().UTC()),
			ExpiresAt: jwt.NewNumericDate(t.now().UTC().Add(t.ttl)),
		},
	})
}

// Verify validates a bearer token's signature and expiry and returns the
// embedded identity. Reset tokens are rejected here; they carry a purpose
// claim that scopes them to the reset flow only.
func (t *TokenIssuer) Verify(token string) (Claims, error) {
	claims, err := t.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Purpose != "" {
		return Claims{}, ErrTokenMalformed
	}
	return Claims{UserID: claims.Subject, Username: claims.Username}, nil
}

// IssueReset produces a short-lived token authorizing a password reset for
// the given user.
func (t *TokenIssuer) IssueReset(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id must be provided")
	}
	return t.sign(tokenClaims{
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(t.now().UTC()),
			ExpiresAt: jwt.NewNumericDate(t.now().UTC().Add(t.resetTTL)),
		},
	})
}

// VerifyReset validates a reset token and returns the user id it authorizes.
func (t *TokenIssuer) VerifyReset(token string) (string, error) {
	claims, err := t.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Purpose != resetPurpose {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}

// WithNowFunc allows tests to override the time source.
func (t *TokenIssuer) WithNowFunc(now func() time.Time) {
	t.now = now
}

func (t *TokenIssuer) sign(claims tokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *TokenIssuer) parse(token string) (tokenClaims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return t.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return tokenClaims{}, ErrTokenExpired
		}
		return tokenClaims{}, ErrTokenMalformed
	}
	if !parsed.Valid || claims.Subject == "" {
		return tokenClaims{}, ErrTokenMalformed
	}
	return claims, nil
}
