package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultAuditHistoryLimit bounds how many audit rows path resolution reads.
const DefaultAuditHistoryLimit = 50

// SubscriptionFetcher loads the stored subscription. A user without one yields (nil, nil).
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, userID uuid.UUID) (*Record, error)
}

// UsageFetcher aggregates resource consumption since a point in time.
type UsageFetcher interface {
	FetchUsageSnapshot(ctx context.Context, userID uuid.UUID, since time.Time) (UsageSnapshot, error)
}

// AuditFetcher returns at most limit audit entries for the user, newest first.
type AuditFetcher interface {
	FetchAuditHistory(ctx context.Context, userID uuid.UUID, limit int) ([]AuditEntry, error)
}

// RefundFetcher returns the user's refunds in pending or approved state.
type RefundFetcher interface {
	FetchNonTerminalRefunds(ctx context.Context, userID uuid.UUID) ([]RefundRecord, error)
}

// SubscriptionFetcherFunc adapts a function to SubscriptionFetcher.
type SubscriptionFetcherFunc func(ctx context.Context, userID uuid.UUID) (*Record, error)

func (f SubscriptionFetcherFunc) FetchSubscription(ctx context.Context, userID uuid.UUID) (*Record, error) {
	return f(ctx, userID)
}

// UsageFetcherFunc adapts a function to UsageFetcher.
type UsageFetcherFunc func(ctx context.Context, userID uuid.UUID, since time.Time) (UsageSnapshot, error)

func (f UsageFetcherFunc) FetchUsageSnapshot(ctx context.Context, userID uuid.UUID, since time.Time) (UsageSnapshot, error) {
	return f(ctx, userID, since)
}

// AuditFetcherFunc adapts a function to AuditFetcher.
type AuditFetcherFunc func(ctx context.Context, userID uuid.UUID, limit int) ([]AuditEntry, error)

func (f AuditFetcherFunc) FetchAuditHistory(ctx context.Context, userID uuid.UUID, limit int) ([]AuditEntry, error) {
	return f(ctx, userID, limit)
}

// RefundFetcherFunc adapts a function to RefundFetcher.
type RefundFetcherFunc func(ctx context.Context, userID uuid.UUID) ([]RefundRecord, error)

func (f RefundFetcherFunc) FetchNonTerminalRefunds(ctx context.Context, userID uuid.UUID) ([]RefundRecord, error) {
	return f(ctx, userID)
}
