package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HammerMeetNail/socialreact/internal/auth"
	"github.com/HammerMeetNail/socialreact/internal/handlers"
)

type fakeVerifier struct {
	claims *auth.Claims
	err    error
	got    string
}

func (f *fakeVerifier) Verify(token string) (*auth.Claims, error) {
	f.got = token
	return f.claims, f.err
}

func TestAuthMiddleware_AnonymousPassesThrough(t *testing.T) {
	m := NewAuthMiddleware(&fakeVerifier{})
	var called bool
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if handlers.GetUserFromContext(r.Context()) != nil {
			t.Fatal("expected anonymous request")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts/1/reactions", nil))
	if !called {
		t.Fatal("expected next handler to run")
	}
}

func TestAuthMiddleware_SetsUserFromToken(t *testing.T) {
	verifier := &fakeVerifier{claims: &auth.Claims{UserID: 9}}
	m := NewAuthMiddleware(verifier)
	var userID int64
	handler := m.Authenticate(m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = handlers.GetUserFromContext(r.Context()).ID
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/posts/1/reactions", nil)
	req.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if verifier.got != "tok" || userID != 9 {
		t.Fatalf("expected user 9 from token, got %d (token %q)", userID, verifier.got)
	}
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"Basic abc":      "Invalid authorization header",
		"Bearer ":        "Invalid authorization header",
		"Bearer expired": "Invalid or expired token",
	}
	for header, message := range cases {
		m := NewAuthMiddleware(&fakeVerifier{err: errors.New("bad")})
		handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler should not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), message) {
			t.Fatalf("%q: expected 401 %q, got %d %s", header, message, rec.Code, rec.Body.String())
		}
	}
}

func TestAuthMiddleware_RequireUser(t *testing.T) {
	m := NewAuthMiddleware(&fakeVerifier{})
	handler := m.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_WithTokenService(t *testing.T) {
	tokens := auth.NewTokenService("secret", "socialreact", time.Hour)
	token, err := tokens.Issue(3)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m := NewAuthMiddleware(tokens)
	var userID int64
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = handlers.GetUserFromContext(r.Context()).ID
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if userID != 3 {
		t.Fatalf("expected user 3, got %d", userID)
	}
}
