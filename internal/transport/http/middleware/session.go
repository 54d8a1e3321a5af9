package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/grepdeck/authgate/internal/application/authn"
	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/infrastructure/security"
	"github.com/grepdeck/authgate/internal/logger"
	"github.com/grepdeck/authgate/internal/provider"
)

// SessionVerifier checks an existing session artifact.
type SessionVerifier interface {
	Verify(token string) (authn.SessionClaims, error)
}

// PassiveSigner signs in identities produced by in-place verifiers.
type PassiveSigner interface {
	SignIn(ctx context.Context, ident domain.Identity) (*authn.SessionResult, error)
}

type SessionConfig struct {
	Signer    SessionVerifier
	Verifiers []provider.RequestVerifier
	Auth      PassiveSigner
	TTL       time.Duration
	Secure    bool
}

// Session resolves the request's identity, if any, and stores it on the
// context. An existing valid cookie wins; otherwise each in-place verifier
// (IAP assertion, trusted proxy headers) gets a chance to authenticate the
// request, in which case the user is provisioned and a fresh cookie is set.
// Anonymous requests pass through untouched; rejecting them is the gate's
// and the handlers' business.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, err := security.ReadSessionCookie(r); err == nil && token != "" {
				if claims, err := cfg.Signer.Verify(token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), claims)))
					return
				}
				// Invalid or expired artifact; drop it and fall through to
				// the passive channels.
				security.ClearSessionCookie(w, cfg.Secure)
			}

			for _, v := range cfg.Verifiers {
				ident, err := v.Verify(r.Context(), r)
				if err != nil {
					// Every verifier failure is just "no identity" here; the
					// code only matters for the log line.
					logger.WithCtx(r.Context()).Debug().
						Str("provider", v.ID()).
						Err(err).
						Msg("passive verification declined")
					continue
				}

				res, err := cfg.Auth.SignIn(r.Context(), ident)
				if err != nil {
					logger.WithCtx(r.Context()).Error().
						Str("provider", v.ID()).
						Err(err).
						Msg("passive sign-in failed")
					continue
				}

				security.SetSessionCookie(w, res.Token, cfg.TTL, cfg.Secure)
				claims := authn.SessionClaims{
					UserID: res.User.ID,
					Email:  res.User.Email,
					Name:   res.User.Name,
					Groups: ident.Groups,
				}
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), claims)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
