package authentication

import "context"

// identity headers, trusted inside the deployment network only
const (
	HeaderUserID        = "x-user-id"
	HeaderUserEmail     = "x-user-email"
	HeaderCorrelationID = "x-correlation-id"
)

// Identity of the caller, lives for one request
type Identity struct {
	UserID string
	Email  string
}

type contextKey string

const (
	identityKey    contextKey = "identity"
	correlationKey contextKey = "correlationId"
)

// WithIdentity threads the identity through the request context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity set by one of the middlewares
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// WithCorrelationID lets outbound calls carry the id of the request that caused them
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID returns the id stored by WithCorrelationID, or ""
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}
