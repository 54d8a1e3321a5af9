package response

import (
	"net/http"

	appctx "github.com/grepdeck/authgate/internal/pkg/context"
)

// RequestIDFromContext extracts the request id stamped by the request-id
// middleware, if any.
func RequestIDFromContext(r *http.Request) string {
	return appctx.GetRequestID(r.Context())
}
