package middleware

import (
	"net/http"
	"strings"

	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/transport/http/response"
)

// TrustHeaderCheck reports whether a request carries the trusted proxy's
// identity headers. Satisfied by provider.HeaderTrust.
type TrustHeaderCheck interface {
	Present(r *http.Request) bool
}

type GateConfig struct {
	SingleTenant bool
	OrgDomain    string

	// Trust is non-nil only when header-trust mode is enabled.
	Trust TrustHeaderCheck
}

// Paths the gate never touches: infrastructure endpoints, the auth surface
// itself, the API (which does its own 401s) and static assets.
var exemptPrefixes = []string{
	"/healthz",
	"/metrics",
	"/auth",
	"/api",
}

// Prefixes that stay reachable without the canonical tenant segment, so a
// user can reach the sign-in surface at all.
var authExemptPrefixes = []string{
	"/login",
	"/signup",
	"/invite",
	"/onboard",
	"/redeem",
}

func hasPrefixSegment(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Gate is the stateless per-request boundary, evaluated in strict order:
// exempt allowlist, then the header-trust anti-bypass check, then tenant
// path canonicalization. Only the 403 branch carries security weight; the
// rest is routing convenience.
func Gate(cfg GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			// Static assets carry a file extension.
			if strings.Contains(path, ".") {
				next.ServeHTTP(w, r)
				return
			}
			for _, p := range exemptPrefixes {
				if hasPrefixSegment(path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Anti-bypass: with a trusted proxy as the sole ingress, a
			// request without its identity headers did not come through it.
			if cfg.Trust != nil && !cfg.Trust.Present(r) {
				gateDeniedTotal.Inc()
				response.WriteError(w, r, domain.ErrHeaderBypass())
				return
			}

			if !cfg.SingleTenant {
				next.ServeHTTP(w, r)
				return
			}

			for _, p := range authExemptPrefixes {
				if hasPrefixSegment(path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if hasPrefixSegment(path, "/"+cfg.OrgDomain) {
				next.ServeHTTP(w, r)
				return
			}

			// Rewrite into the canonical tenant path, keeping the query.
			target := "/" + cfg.OrgDomain + path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			gateRedirectsTotal.Inc()
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		})
	}
}
