package subscription

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus is the review state of a refund request.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundApproved  RefundStatus = "approved"
	RefundRejected  RefundStatus = "rejected"
	RefundProcessed RefundStatus = "processed"
	RefundCancelled RefundStatus = "cancelled"
)

// IsNonTerminal reports whether the request still blocks a new one.
func (s RefundStatus) IsNonTerminal() bool {
	return s == RefundPending || s == RefundApproved
}

// RefundRecord is one refund request.
type RefundRecord struct {
	ID     uuid.UUID    `json:"id"`
	UserID uuid.UUID    `json:"user_id"`
	Status RefundStatus `json:"status"`
	Reason string       `json:"reason,omitempty"`
	// EligibilityDetails is a frozen copy of the eligibility computation at request time.
	EligibilityDetails map[string]any `json:"eligibility_details,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// OpenRefund returns the first refund still in pending or approved state.
// This is the single precondition behind "one open refund per user"; stores
// enforce the same rule atomically on insert.
func OpenRefund(refunds []RefundRecord) (RefundRecord, bool) {
	for _, r := range refunds {
		if r.Status.IsNonTerminal() {
			return r, true
		}
	}
	return RefundRecord{}, false
}
