package logging

import "context"

type ctxKey string

const requestIDKey ctxKey = "fk.requestID"

// WithRequestID stores the request identifier in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID fetches the request identifier from context, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
