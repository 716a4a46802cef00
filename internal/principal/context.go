package principal

import "context"

type contextKey string

const principalKey contextKey = "refund_principal"

// WithPrincipal attaches the resolved principal to the request context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the principal attached to the context, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	value, ok := ctx.Value(principalKey).(Principal)
	return value, ok
}
