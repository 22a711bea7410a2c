package billing

import "fmt"

// RejectedError reports a request refused by the lifecycle validator or the refund engine.
// It unwraps to ErrTransitionRejected.
type RejectedError struct {
	Action string `json:"action"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
	// AdminReview is set for refund rejections that rest on an inferred upgrade path.
	AdminReview bool `json:"admin_review,omitempty"`
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("billing: %s rejected: %s (%s)", e.Action, e.Reason, e.Code)
}

func (e *RejectedError) Unwrap() error {
	return ErrTransitionRejected
}
