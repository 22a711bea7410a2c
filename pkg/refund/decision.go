package refund

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// Code is the machine-readable outcome of an eligibility check.
type Code string

const (
	CodeEligible                    Code = "ELIGIBLE"
	CodeRefundAlreadyExists         Code = "REFUND_ALREADY_EXISTS"
	CodeNoActiveSubscription        Code = "NO_ACTIVE_SUBSCRIPTION"
	CodeAlreadyOnBaselinePlan       Code = "ALREADY_ON_BASELINE_PLAN"
	CodePlanNotRefundable           Code = "PLAN_NOT_REFUNDABLE"
	CodeAgeUndetermined             Code = "AGE_UNDETERMINED"
	CodePurchaseTooOld              Code = "PURCHASE_TOO_OLD"
	CodeUsageUndetermined           Code = "USAGE_UNDETERMINED"
	CodeUsageExceedsStarterBaseline Code = "USAGE_EXCEEDS_STARTER_BASELINE"
	CodeUsageExceedsPlusBaseline    Code = "USAGE_EXCEEDS_PLUS_BASELINE"
	CodeRefundStatusUndetermined    Code = "REFUND_STATUS_UNDETERMINED"
	CodeSubscriptionUndetermined    Code = "SUBSCRIPTION_UNDETERMINED"
)

// Decision is the eligibility verdict. Plain data, safe to serialize.
type Decision struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
	Code     Code   `json:"code"`
	// AdminReviewRecommended is set when the verdict rests on a guessed upgrade path.
	AdminReviewRecommended bool    `json:"admin_review_recommended,omitempty"`
	Details                Details `json:"details"`
}

// Details is everything computed on the way to a decision, kept for audit and display.
type Details struct {
	CurrentPlan          plan.Tier                 `json:"current_plan,omitempty"`
	ExistingRefundStatus subscription.RefundStatus `json:"existing_refund_status,omitempty"`
	PurchaseDate         time.Time                 `json:"purchase_date,omitzero"`
	DaysSincePurchase    int                       `json:"days_since_purchase"`
	UsageMeasured        bool                      `json:"usage_measured"`
	StorageGB            decimal.Decimal           `json:"storage_gb"`
	ResourceCount        int64                     `json:"resource_count"`
	UpgradePath          plan.Path                 `json:"upgrade_path,omitempty"`
	AppliedLimit         string                    `json:"applied_limit,omitempty"`
}

// Map flattens the details into a JSON-compatible map, leaving out what was never computed.
// The result is stored alongside a refund request as a frozen copy of the decision inputs.
func (d Details) Map() map[string]any {
	m := make(map[string]any, 9)
	if d.CurrentPlan != "" {
		m["current_plan"] = d.CurrentPlan.String()
	}
	if d.ExistingRefundStatus != "" {
		m["existing_refund_status"] = string(d.ExistingRefundStatus)
	}
	if !d.PurchaseDate.IsZero() {
		m["purchase_date"] = d.PurchaseDate.UTC().Format(time.RFC3339)
		m["days_since_purchase"] = d.DaysSincePurchase
	}
	if d.UsageMeasured {
		m["storage_gb"] = d.StorageGB.InexactFloat64()
		m["resource_count"] = d.ResourceCount
	}
	if d.UpgradePath != "" {
		m["upgrade_path"] = d.UpgradePath.String()
	}
	if d.AppliedLimit != "" {
		m["applied_limit"] = d.AppliedLimit
	}
	return m
}

func eligible(reason string, d Details) Decision {
	return Decision{Eligible: true, Reason: reason, Code: CodeEligible, Details: d}
}

func ineligible(code Code, reason string, d Details) Decision {
	return Decision{Eligible: false, Reason: reason, Code: code, Details: d}
}
