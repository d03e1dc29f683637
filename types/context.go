package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyCallID contextKey = "call_id"
)

// WithCallID adds the guarded call ID to context.
func WithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, keyCallID, callID)
}

// CallID extracts the guarded call ID from context.
func CallID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyCallID).(string)
	return v, ok && v != ""
}
