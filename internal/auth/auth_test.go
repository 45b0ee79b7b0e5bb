package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessions("test-secret", nil)

	w := httptest.NewRecorder()
	s.Create(w, "emp-1a2b3c4d")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	id, ok := s.Parse(req)
	if !ok || id != "emp-1a2b3c4d" {
		t.Fatalf("parse failed: %q %v", id, ok)
	}
}

func TestSessionRejectsTamperedCookie(t *testing.T) {
	s := NewSessions("test-secret", nil)
	w := httptest.NewRecorder()
	s.Create(w, "emp-1a2b3c4d")
	cookie := w.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: "emp-other." + cookie.Value[len("emp-1a2b3c4d."):]})
	if _, ok := s.Parse(req); ok {
		t.Fatal("tampered cookie accepted")
	}
}

func TestSessionRejectsWrongSecret(t *testing.T) {
	a := NewSessions("secret-a", nil)
	b := NewSessions("secret-b", nil)
	w := httptest.NewRecorder()
	a.Create(w, "emp-1")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	if _, ok := b.Parse(req); ok {
		t.Fatal("cookie signed with another secret accepted")
	}
}

func TestRequireRejectsInactiveUser(t *testing.T) {
	s := NewSessions("test-secret", func(_ context.Context, id string) bool {
		return id == "emp-active"
	})

	handler := s.Middleware(s.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	call := func(id string) int {
		w := httptest.NewRecorder()
		s.Create(w, id)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range w.Result().Cookies() {
			req.AddCookie(c)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp.Code
	}
	if code := call("emp-active"); code != http.StatusOK {
		t.Fatalf("active user rejected: %d", code)
	}
	if code := call("emp-gone"); code != http.StatusUnauthorized {
		t.Fatalf("inactive user accepted: %d", code)
	}

	// no cookie at all
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous accepted: %d", resp.Code)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "hunter3") {
		t.Fatal("wrong password accepted")
	}
}
