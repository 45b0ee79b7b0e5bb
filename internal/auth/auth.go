// Package auth implements signed-cookie sessions for employee logins.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type ctxKey string

const (
	sessionCookieName = "session"
	userIDCtxKey      = ctxKey("userID")

	sessionTTL = 14 * 24 * time.Hour
)

// Verifier checks that a session's employee still exists and is active.
type Verifier func(ctx context.Context, employeeID string) bool

// Sessions signs and validates session cookies. The cookie value is
// "<employee id>.<hmac-sha256 signature>".
type Sessions struct {
	Secret   string
	Verifier Verifier
}

func NewSessions(secret string, verifier Verifier) *Sessions {
	return &Sessions{Secret: secret, Verifier: verifier}
}

func (s *Sessions) sign(id string) string {
	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Create sets a signed session cookie for the employee.
func (s *Sessions) Create(w http.ResponseWriter, employeeID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    employeeID + "." + s.sign(employeeID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
}

// Clear deletes the session cookie.
func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Parse validates the session cookie and returns the employee id.
func (s *Sessions) Parse(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	// The id may itself contain dashes but never a dot; split on the last dot.
	i := strings.LastIndex(c.Value, ".")
	if i <= 0 {
		return "", false
	}
	id, sig := c.Value[:i], c.Value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.sign(id))) {
		return "", false
	}
	return id, true
}

// WithUserID stores the employee id in the context.
func WithUserID(ctx context.Context, employeeID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey, employeeID)
}

// UserID extracts the employee id stored by Middleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDCtxKey).(string)
	return id, ok && id != ""
}

// Middleware attaches the employee id to the request context if a valid
// session cookie is present.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := s.Parse(r); ok {
			r = r.WithContext(WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects unauthenticated requests with 401. A session pointing at a
// deleted or deactivated employee is cleared and rejected the same way.
func (s *Sessions) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserID(r.Context())
		if !ok {
			unauthorized(w)
			return
		}
		if s.Verifier != nil && !s.Verifier(r.Context(), id) {
			s.Clear(w)
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
