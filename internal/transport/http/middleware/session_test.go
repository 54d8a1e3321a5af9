package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/grepdeck/authgate/internal/application/authn"
	"github.com/grepdeck/authgate/internal/config"
	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/infrastructure/security"
	"github.com/grepdeck/authgate/internal/logger"
	"github.com/grepdeck/authgate/internal/provider"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter(io.Discard)
	m.Run()
}

type fakeVerifier struct {
	claims map[string]authn.SessionClaims
}

func (f *fakeVerifier) Verify(token string) (authn.SessionClaims, error) {
	c, ok := f.claims[token]
	if !ok {
		return authn.SessionClaims{}, domain.ErrSessionInvalid()
	}
	return c, nil
}

type fakeAuth struct {
	signInErr error
	calls     int
}

func (f *fakeAuth) SignIn(_ context.Context, ident domain.Identity) (*authn.SessionResult, error) {
	f.calls++
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &authn.SessionResult{
		User:  domain.User{ID: "u-1", Email: ident.Email, Name: ident.Name},
		Token: "fresh-token",
	}, nil
}

func headerTrustVerifier() provider.RequestVerifier {
	return provider.NewHeaderTrust(
		config.DefaultProxyUserHeader, config.DefaultProxyEmailHeader,
		config.DefaultProxyNameHeader, config.DefaultProxyGroupsHeader,
	)
}

func sessionHandler(cfg SessionConfig) (http.Handler, *authn.SessionClaims, *bool) {
	var got authn.SessionClaims
	seen := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, seen = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return Session(cfg)(next), &got, &seen
}

func TestSession_ValidCookie(t *testing.T) {
	signer := &fakeVerifier{claims: map[string]authn.SessionClaims{
		"good": {UserID: "u-9", Email: "a@b.com"},
	}}
	h, got, seen := sessionHandler(SessionConfig{Signer: signer})

	r := httptest.NewRequest("GET", "/~/repos", nil)
	r.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "good"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if !*seen {
		t.Fatal("expected session on context")
	}
	if got.UserID != "u-9" || got.Email != "a@b.com" {
		t.Fatalf("unexpected claims %+v", *got)
	}
}

func TestSession_InvalidCookieClearedAndAnonymous(t *testing.T) {
	signer := &fakeVerifier{claims: map[string]authn.SessionClaims{}}
	h, _, seen := sessionHandler(SessionConfig{Signer: signer})

	r := httptest.NewRequest("GET", "/~/repos", nil)
	r.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "stale"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *seen {
		t.Fatal("stale cookie must not yield a session")
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == security.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected the stale cookie to be cleared")
	}
}

func TestSession_PassiveVerifierSignsIn(t *testing.T) {
	signer := &fakeVerifier{claims: map[string]authn.SessionClaims{}}
	auth := &fakeAuth{}
	h, got, seen := sessionHandler(SessionConfig{
		Signer:    signer,
		Verifiers: []provider.RequestVerifier{headerTrustVerifier()},
		Auth:      auth,
		TTL:       time.Hour,
	})

	r := httptest.NewRequest("GET", "/~/repos", nil)
	r.Header.Set(config.DefaultProxyUserHeader, "carol")
	r.Header.Set(config.DefaultProxyEmailHeader, "carol@example.com")
	r.Header.Set(config.DefaultProxyGroupsHeader, "eng,sec")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if auth.calls != 1 {
		t.Fatalf("expected one sign-in, got %d", auth.calls)
	}
	if !*seen || got.UserID != "u-1" {
		t.Fatalf("expected provisioned session, got %+v", *got)
	}
	if len(got.Groups) != 2 || got.Groups[0] != "eng" {
		t.Fatalf("groups not carried: %v", got.Groups)
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if strings.Contains(c.Name, security.SessionCookieName) {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != "fresh-token" {
		t.Fatalf("expected fresh session cookie, got %+v", cookie)
	}
}

func TestSession_PassiveSignInFailureIsAnonymous(t *testing.T) {
	signer := &fakeVerifier{claims: map[string]authn.SessionClaims{}}
	auth := &fakeAuth{signInErr: errors.New("db down")}
	h, _, seen := sessionHandler(SessionConfig{
		Signer:    signer,
		Verifiers: []provider.RequestVerifier{headerTrustVerifier()},
		Auth:      auth,
	})

	r := httptest.NewRequest("GET", "/~/repos", nil)
	r.Header.Set(config.DefaultProxyEmailHeader, "carol@example.com")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if *seen {
		t.Fatal("failed sign-in must fall through to anonymous")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("anonymous request must still pass, got %d", w.Code)
	}
}

func TestSession_NoIdentityPassesThrough(t *testing.T) {
	signer := &fakeVerifier{claims: map[string]authn.SessionClaims{}}
	auth := &fakeAuth{}
	h, _, seen := sessionHandler(SessionConfig{
		Signer:    signer,
		Verifiers: []provider.RequestVerifier{headerTrustVerifier()},
		Auth:      auth,
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/~/repos", nil))

	if *seen {
		t.Fatal("expected anonymous request")
	}
	if auth.calls != 0 {
		t.Fatal("no verifier matched, sign-in must not run")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", w.Code)
	}
}
