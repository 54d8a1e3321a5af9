package audit

import "context"

// Actor and target types used in audit events.
const (
	TypeUser = "user"
	TypeOrg  = "org"
)

// Event is one audit record. Events describe authentication outcomes, not
// request plumbing; transport details stay in the access log.
type Event struct {
	Action     string `json:"action"`
	ActorID    string `json:"actorId"`
	ActorType  string `json:"actorType"`
	TargetID   string `json:"targetId"`
	TargetType string `json:"targetType"`
	OrgID      int64  `json:"orgId"`
}

// Sink receives audit events. Record must never block the caller's request
// and must swallow its own failures; auth outcomes do not depend on the
// audit trail being writable.
type Sink interface {
	Record(ctx context.Context, e Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}
