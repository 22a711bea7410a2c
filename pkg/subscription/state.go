package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gallerybilling/pkg/plan"
)

// State is the immutable view of a user's subscription that transition guards read.
// It is a value type; copies never share mutable data.
type State struct {
	UserID                 uuid.UUID    `json:"user_id"`
	CurrentPlan            plan.Tier    `json:"current_plan"`
	Status                 Status       `json:"status,omitempty"`
	HasGatewaySubscription bool         `json:"has_gateway_subscription"`
	CancelPending          bool         `json:"cancel_pending"`
	PendingPlan            plan.Tier    `json:"pending_plan,omitempty"`
	Processing             bool         `json:"processing"`
	PeriodEnd              time.Time    `json:"period_end"`
	HasOpenRefund          bool         `json:"has_open_refund"`
	OpenRefundStatus       RefundStatus `json:"open_refund_status,omitempty"`
	Now                    time.Time    `json:"now"`
}

// NewState combines the user, the subscription record (nil when the user never
// subscribed) and the user's refunds into a snapshot evaluated at now.
func NewState(user User, record *Record, refunds []RefundRecord, now time.Time) State {
	s := State{
		UserID:      user.ID,
		CurrentPlan: plan.TierFree,
		Now:         now,
	}

	if record != nil {
		s.CurrentPlan = record.Plan
		s.Status = record.Status
		s.HasGatewaySubscription = record.HasGatewaySubscription()
		s.CancelPending = record.CancelAtPeriodEnd
		s.PendingPlan = record.PendingPlan
		s.Processing = record.ProcessingChange
		s.PeriodEnd = record.CurrentPeriodEnd
	}
	if user.Plan != "" {
		s.CurrentPlan = user.Plan
	}
	if s.CurrentPlan == "" {
		s.CurrentPlan = plan.TierFree
	}

	if open, ok := OpenRefund(refunds); ok {
		s.HasOpenRefund = true
		s.OpenRefundStatus = open.Status
	}

	return s
}

// IsFree reports whether the effective plan is the free tier.
func (s State) IsFree() bool {
	return s.CurrentPlan == plan.TierFree
}

// PeriodEnded reports whether the current billing period is over at s.Now.
func (s State) PeriodEnded() bool {
	return !s.Now.Before(s.PeriodEnd)
}
