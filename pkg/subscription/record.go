package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gallerybilling/pkg/plan"
)

// Status is the gateway-side state of a paid subscription.
type Status string

const (
	StatusActive     Status = "active"
	StatusTrialing   Status = "trialing"
	StatusPastDue    Status = "past_due"
	StatusIncomplete Status = "incomplete"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// Record is a user's current paid-subscription snapshot.
type Record struct {
	UserID              uuid.UUID  `json:"user_id"`
	Plan                plan.Tier  `json:"plan"`
	Status              Status     `json:"status"`
	CancelAtPeriodEnd   bool       `json:"cancel_at_period_end"`
	PendingPlan         plan.Tier  `json:"pending_plan,omitempty"` // empty when no change is scheduled
	PendingPlanChangeAt *time.Time `json:"pending_plan_change_at,omitempty"`
	// ProcessingChange is the advisory lock held by the orchestrator while a
	// gateway mutation is in flight.
	ProcessingChange      bool      `json:"processing_change"`
	CurrentPeriodEnd      time.Time `json:"current_period_end"`
	GatewaySubscriptionID string    `json:"gateway_subscription_id,omitempty"`
	CreatedAt             Timestamp `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	// Version increases on every write and backs compare-and-swap updates.
	Version int64 `json:"version"`
}

// HasGatewaySubscription reports whether a paid subscription exists at the gateway.
func (r *Record) HasGatewaySubscription() bool {
	return r != nil && r.GatewaySubscriptionID != ""
}

// IsActive reports whether the gateway considers the subscription billable.
func (r *Record) IsActive() bool {
	return r != nil && (r.Status == StatusActive || r.Status == StatusTrialing)
}

// Clone returns a deep copy safe to mutate.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.PendingPlanChangeAt != nil {
		at := *r.PendingPlanChangeAt
		c.PendingPlanChangeAt = &at
	}
	return &c
}

// User is the part of the account record the billing core needs.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	// Plan is the user's effective current plan. Empty means "take it from the subscription".
	Plan plan.Tier `json:"plan,omitempty"`
}
