package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/infrastructure/redis"
	"github.com/grepdeck/authgate/internal/logger"
	"github.com/grepdeck/authgate/internal/transport/http/response"
)

// LoginRateLimiter is the limiter port; satisfied by redis.LoginLimiter.
type LoginRateLimiter interface {
	Allow(ctx context.Context, key string) (redis.Decision, error)
}

// RateLimit throttles the sign-in endpoints by client IP. Limiter errors
// fail open: a broken Redis must not lock everyone out.
func RateLimit(limiter LoginRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			d, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.WithCtx(r.Context()).Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())+1))
				response.WriteError(w, r, domain.ErrRateLimited())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
