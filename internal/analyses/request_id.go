package analyses

import "context"

type requestIDKey struct{}

// WithRequestID tags ctx with the id of the HTTP request or queue message
// that triggered the work.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// detached keeps the request id but drops ctx's deadline and cancellation,
// for work that outlives the HTTP request.
func detached(ctx context.Context) context.Context {
	return WithRequestID(context.Background(), requestIDFromContext(ctx))
}
