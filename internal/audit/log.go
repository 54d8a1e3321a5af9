package audit

import (
	"context"

	"github.com/rs/zerolog"

	appctx "github.com/grepdeck/authgate/internal/pkg/context"
)

// LogSink writes audit events to the structured log. This is the default
// sink; deployments that need a durable trail swap in the message-queue
// sink instead.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{
		log: log.With().Bool("audit", true).Logger(),
	}
}

func (s *LogSink) Record(ctx context.Context, e Event) {
	s.log.Info().
		Str("action", e.Action).
		Str("actor_id", e.ActorID).
		Str("actor_type", e.ActorType).
		Str("target_id", e.TargetID).
		Str("target_type", e.TargetType).
		Int64("org_id", e.OrgID).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("audit event")
}
