package services

import "context"

type contextKey string

const (
	videoIDKey   contextKey = "video_id"
	passKey      contextKey = "pass"
	accountKey   contextKey = "account"
	requestIDKey contextKey = "request_id"
)

// WithVideoID annotates context with the source video identifier.
func WithVideoID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, videoIDKey, id)
}

// VideoIDFromContext extracts the source video identifier if present.
func VideoIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(videoIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPass annotates context with the orchestrator pass name (sync, recovery, main).
func WithPass(ctx context.Context, pass string) context.Context {
	if pass == "" {
		return ctx
	}
	return context.WithValue(ctx, passKey, pass)
}

// PassFromContext returns the pass name if present.
func PassFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(passKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithAccount annotates context with the quota account performing the current call.
func WithAccount(ctx context.Context, account string) context.Context {
	if account == "" {
		return ctx
	}
	return context.WithValue(ctx, accountKey, account)
}

// AccountFromContext returns the quota account if present.
func AccountFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(accountKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
