package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/grepdeck/authgate/internal/transport/http/middleware"
)

type fakeHealth struct{ called bool }

func (f *fakeHealth) Healthz(w http.ResponseWriter, r *http.Request) {
	f.called = true
	w.WriteHeader(http.StatusOK)
}

type fakeAuth struct{ last string }

func (f *fakeAuth) handler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.last = name
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeAuth) Providers(w http.ResponseWriter, r *http.Request) { f.handler("providers")(w, r) }
func (f *fakeAuth) Login(w http.ResponseWriter, r *http.Request)    { f.handler("login")(w, r) }
func (f *fakeAuth) Callback(w http.ResponseWriter, r *http.Request) { f.handler("callback")(w, r) }
func (f *fakeAuth) Me(w http.ResponseWriter, r *http.Request)       { f.handler("me")(w, r) }
func (f *fakeAuth) Logout(w http.ResponseWriter, r *http.Request)   { f.handler("logout")(w, r) }

func markMW(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Chain", header)
			next.ServeHTTP(w, r)
		})
	}
}

func newTestRouter(t *testing.T) (http.Handler, *fakeHealth, *fakeAuth) {
	t.Helper()
	health := &fakeHealth{}
	auth := &fakeAuth{}
	h, err := New(Deps{
		Health:  health,
		Auth:    auth,
		Session: markMW("session"),
		Gate:    middleware.Gate(middleware.GateConfig{SingleTenant: true, OrgDomain: "~"}),
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return h, health, auth
}

func TestRouter_Routes(t *testing.T) {
	h, health, auth := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		want   string
	}{
		{"GET", "/auth/providers", "providers"},
		{"GET", "/auth/login/github", "login"},
		{"GET", "/auth/callback/github", "callback"},
		{"POST", "/auth/logout", "logout"},
		{"GET", "/api/auth/user", "me"},
	}
	for _, tc := range cases {
		auth.last = ""
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if auth.last != tc.want {
			t.Fatalf("%s %s: routed to %q, want %q (status %d)", tc.method, tc.path, auth.last, tc.want, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if !health.called {
		t.Fatalf("healthz not routed, status %d", w.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	h, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "authgate_http_requests_total") {
		t.Fatal("expected authgate metrics in exposition")
	}
}

func TestRouter_GateRedirectsAppPaths(t *testing.T) {
	h, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/repos", nil))

	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected 307 from gate, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/~/repos" {
		t.Fatalf("unexpected location %q", loc)
	}
}

func TestRouter_CanonicalAppPathFallsThrough(t *testing.T) {
	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h, err := New(Deps{
		Health:     &fakeHealth{},
		Auth:       &fakeAuth{},
		Session:    markMW("session"),
		Gate:       middleware.Gate(middleware.GateConfig{SingleTenant: true, OrgDomain: "~"}),
		AppHandler: app,
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/~/repos", nil))

	if w.Code != http.StatusTeapot {
		t.Fatalf("expected app handler, got %d", w.Code)
	}
	if w.Header().Get("X-Chain") != "session" {
		t.Fatal("session middleware must run before the app")
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	h, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers on every response")
	}
}

func TestRouter_RequestIDReflected(t *testing.T) {
	h, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Header().Get(middleware.HeaderXRequestID) == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestRouter_NilDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error for missing handlers")
	}
}
