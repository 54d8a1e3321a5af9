package logger

import (
	"context"

	"github.com/rs/zerolog"

	appctx "github.com/grepdeck/authgate/internal/pkg/context"
)

// WithCtx returns a child logger carrying the request id, when one is present
// on the context. Returned as a pointer so call sites can chain level methods
// directly.
func WithCtx(ctx context.Context) *zerolog.Logger {
	if id := appctx.GetRequestID(ctx); id != "" {
		l := Logger.With().Str("request_id", id).Logger()
		return &l
	}
	return &Logger
}
