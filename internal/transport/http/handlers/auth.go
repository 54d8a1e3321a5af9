package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grepdeck/authgate/internal/application/authn"
	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/infrastructure/security"
	"github.com/grepdeck/authgate/internal/logger"
	"github.com/grepdeck/authgate/internal/provider"
	"github.com/grepdeck/authgate/internal/transport/http/middleware"
	"github.com/grepdeck/authgate/internal/transport/http/response"
)

/*
AuthService is the slice of the application layer the HTTP surface needs.
*/
type AuthService interface {
	Providers() []provider.Descriptor
	StartLogin(ctx context.Context, providerID, redirectTo string) (string, error)
	CompleteLogin(ctx context.Context, providerID, stateToken, code string) (*authn.SessionResult, error)
	CurrentUser(ctx context.Context, claims authn.SessionClaims) (domain.User, error)
	SignOut(ctx context.Context, claims authn.SessionClaims)
}

type AuthHandler struct {
	svc        AuthService
	orgDomain  string
	sessionTTL time.Duration
	secure     bool
}

func NewAuthHandler(svc AuthService, orgDomain string, sessionTTL time.Duration, secure bool) *AuthHandler {
	return &AuthHandler{
		svc:        svc,
		orgDomain:  orgDomain,
		sessionTTL: sessionTTL,
		secure:     secure,
	}
}

// Providers handles GET /auth/providers.
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.svc.Providers())
}

// Login handles GET /auth/login/{provider} and sends the browser to the
// provider's authorization page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	redirectTo := sanitizeRedirect(r.URL.Query().Get("redirect_to"))

	authURL, err := h.svc.StartLogin(r.Context(), providerID, redirectTo)
	if err != nil {
		// In-place providers (IAP, trusted headers) have no redirect flow;
		// the session middleware already authenticated the request, so the
		// sign-in is done and the browser just goes to the app.
		if _, ok := middleware.SessionFromContext(r.Context()); ok && domain.Is(err, "unsupported_provider") {
			target := redirectTo
			if target == "" {
				target = "/" + h.orgDomain
			}
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		response.WriteError(w, r, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /auth/callback/{provider}: the provider redirected the
// browser back with a one-time code, which we trade for a session.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	q := r.URL.Query()

	// The provider reports user cancellation and its own errors in the query.
	if errCode := q.Get("error"); errCode != "" {
		middleware.SignInsTotal.WithLabelValues(providerID, "failure").Inc()
		logger.WithCtx(r.Context()).Warn().
			Str("provider", providerID).
			Str("error", errCode).
			Msg("provider returned an error on callback")
		response.WriteError(w, r, domain.ErrInvalidState())
		return
	}

	state := q.Get("state")
	code := q.Get("code")
	if state == "" {
		middleware.SignInsTotal.WithLabelValues(providerID, "failure").Inc()
		response.WriteError(w, r, domain.ErrMissingField("state"))
		return
	}
	if code == "" {
		middleware.SignInsTotal.WithLabelValues(providerID, "failure").Inc()
		response.WriteError(w, r, domain.ErrMissingField("code"))
		return
	}

	res, err := h.svc.CompleteLogin(r.Context(), providerID, state, code)
	if err != nil {
		middleware.SignInsTotal.WithLabelValues(providerID, "failure").Inc()
		response.WriteError(w, r, err)
		return
	}
	middleware.SignInsTotal.WithLabelValues(providerID, "success").Inc()

	security.SetSessionCookie(w, res.Token, h.sessionTTL, h.secure)

	target := res.RedirectTo
	if target == "" {
		target = "/" + h.orgDomain
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Me handles GET /api/auth/user and returns the signed-in user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrSessionMissing())
		return
	}

	user, err := h.svc.CurrentUser(r.Context(), claims)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	response.OK(w, userPayload{
		ID:     user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Image:  user.Image,
		Groups: claims.Groups,
	})
}

// Logout handles POST /auth/logout: drops the cookie and records the event.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.SessionFromContext(r.Context()); ok {
		h.svc.SignOut(r.Context(), claims)
	}
	security.ClearSessionCookie(w, h.secure)
	response.NoContent(w)
}

type userPayload struct {
	ID     string   `json:"id"`
	Email  string   `json:"email"`
	Name   string   `json:"name,omitempty"`
	Image  string   `json:"image,omitempty"`
	Groups []string `json:"groups,omitempty"`
}

// sanitizeRedirect keeps post-login redirects on-site. Anything that is not a
// local absolute path is dropped.
func sanitizeRedirect(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return ""
	}
	if strings.Contains(raw, "\\") {
		return ""
	}
	return raw
}
