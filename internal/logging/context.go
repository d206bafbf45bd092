package logging

import (
	"context"
	"log/slog"
)

type contextKey struct{}

type contextAttrs struct {
	itemID    int64
	stage     string
	requestID string
}

// WithItemContext records queue item identity on the context so nested
// components can emit correlated log lines.
func WithItemContext(ctx context.Context, itemID int64, stage, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, contextAttrs{
		itemID:    itemID,
		stage:     stage,
		requestID: requestID,
	})
}

// WithContext attaches any item attributes stored on the context to the logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	attrs, ok := ctx.Value(contextKey{}).(contextAttrs)
	if !ok {
		return logger
	}
	out := logger
	if attrs.itemID != 0 {
		out = out.With(Int64(FieldItemID, attrs.itemID))
	}
	if attrs.stage != "" {
		out = out.With(String(FieldStage, attrs.stage))
	}
	if attrs.requestID != "" {
		out = out.With(String(FieldRequestID, attrs.requestID))
	}
	return out
}
