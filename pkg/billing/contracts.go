package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gallerybilling/pkg/notify"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// Store persists subscriptions and refunds. Implementations must make
// ClaimProcessing and CreateRefund atomic against concurrent callers.
type Store interface {
	subscription.SubscriptionFetcher
	subscription.RefundFetcher

	FetchUser(ctx context.Context, userID uuid.UUID) (subscription.User, error)

	// ClaimProcessing sets the processing flag if the stored record still has the
	// given version and the flag is unset. It returns the claimed record with its
	// new version, or ErrChangeInProgress.
	ClaimProcessing(ctx context.Context, userID uuid.UUID, version int64) (*subscription.Record, error)

	// ReleaseProcessing clears the processing flag without other changes.
	ReleaseProcessing(ctx context.Context, userID uuid.UUID) error

	// SaveSubscription writes rec if the stored version still equals rec.Version,
	// or returns ErrStaleRecord. The stored version is incremented.
	SaveSubscription(ctx context.Context, rec *subscription.Record) error

	// CreateRefund inserts a refund request, returning ErrRefundExists when the
	// user already has one in pending or approved state.
	CreateRefund(ctx context.Context, r subscription.RefundRecord) error
}

// Gateway is the payment provider. Implementations talk to the provider only;
// local state is the Service's job.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)
	ChangePlan(ctx context.Context, subscriptionID string, target plan.Plan) (*GatewaySubscription, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*GatewaySubscription, error)
	Resume(ctx context.Context, subscriptionID string) (*GatewaySubscription, error)
}

// CheckoutRequest contains data needed to create a hosted checkout.
type CheckoutRequest struct {
	PriceID    string
	UserID     uuid.UUID
	Email      string
	Plan       plan.Tier
	SuccessURL string
}

// CheckoutLink is a hosted checkout session.
type CheckoutLink struct {
	URL       string    `json:"url"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GatewaySubscription is the provider's view of a subscription after a mutation.
type GatewaySubscription struct {
	ID        string
	Status    subscription.Status
	PeriodEnd time.Time // zero when the provider did not report it
}

// AuditRecorder appends to the user's billing audit trail.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, userID uuid.UUID, entry subscription.AuditEntry) error
}

// Notifier delivers customer notices.
type Notifier interface {
	Send(ctx context.Context, n notify.Notice) error
}

// Metrics receives decision and gateway outcomes.
type Metrics interface {
	TransitionEvaluated(action, code string, valid bool)
	RefundEvaluated(code string, eligible bool)
	GatewayCall(operation string, err error)
}

type noopMetrics struct{}

func (noopMetrics) TransitionEvaluated(string, string, bool) {}
func (noopMetrics) RefundEvaluated(string, bool)             {}
func (noopMetrics) GatewayCall(string, error)                {}

type noopAudit struct{}

func (noopAudit) RecordAudit(context.Context, uuid.UUID, subscription.AuditEntry) error { return nil }
