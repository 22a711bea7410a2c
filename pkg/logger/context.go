package logger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type ctxKey struct{ name string }

var (
	userIDKey    = ctxKey{"user_id"}
	operationKey = ctxKey{"operation"}
)

// WithUserIDContext stores the user a billing operation acts on.
func WithUserIDContext(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the user stored by WithUserIDContext.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// WithOperationContext names the operation being run, e.g. a CLI command.
func WithOperationContext(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey, name)
}

// BillingContextExtractor groups user_id and operation from the context under "billing".
func BillingContextExtractor() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		var attrs []slog.Attr
		if id, ok := UserIDFromContext(ctx); ok {
			attrs = append(attrs, slog.String("user_id", id.String()))
		}
		if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
			attrs = append(attrs, slog.String("operation", op))
		}
		if len(attrs) == 0 {
			return slog.Attr{}, false
		}
		return Group("billing", attrs...), true
	}
}
