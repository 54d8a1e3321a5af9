package middleware

import (
	"context"

	"github.com/grepdeck/authgate/internal/application/authn"
)

type ctxKey string

const ctxSession ctxKey = "session"

func WithSession(ctx context.Context, claims authn.SessionClaims) context.Context {
	return context.WithValue(ctx, ctxSession, claims)
}

func SessionFromContext(ctx context.Context) (authn.SessionClaims, bool) {
	claims, ok := ctx.Value(ctxSession).(authn.SessionClaims)
	return claims, ok && claims.UserID != ""
}
