package refund

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

const (
	// WindowDays is the refund window length in days.
	WindowDays = 14
	// Window is WindowDays as a duration. Elapsed time strictly above it closes the window.
	Window = WindowDays * 24 * time.Hour
)

// Input is the already fetched data an eligibility decision is computed from.
type Input struct {
	User         subscription.User
	Subscription *subscription.Record // nil when the user has no subscription row
	Refunds      []subscription.RefundRecord
	// Usage is nil when aggregation failed, which makes the decision fail closed.
	Usage *subscription.UsageSnapshot
	Path  plan.Path
	Now   time.Time
}

// CurrentPlan is the user's effective plan: the account's plan when set, else the subscription's.
func (in Input) CurrentPlan() plan.Tier {
	if in.User.Plan != "" {
		return in.User.Plan
	}
	if in.Subscription != nil && in.Subscription.Plan != "" {
		return in.Subscription.Plan
	}
	return plan.TierFree
}

// Engine evaluates refund eligibility against a plan catalog.
type Engine struct {
	catalog *plan.Catalog
}

// NewEngine creates an Engine. It panics if catalog is nil.
func NewEngine(catalog *plan.Catalog) *Engine {
	if catalog == nil {
		panic("refund: catalog is required")
	}
	return &Engine{catalog: catalog}
}

// Evaluate runs the full eligibility check. It never fails; every outcome is a Decision.
func (e *Engine) Evaluate(in Input) Decision {
	d, done := e.Precheck(in)
	if done {
		return d
	}
	return e.checkUsage(in, d.Details)
}

// Precheck runs the checks that need neither usage nor audit history: open refunds,
// subscription presence, plan and purchase age. done is false when the caller should
// go on and measure usage; the returned details then carry the purchase date.
func (e *Engine) Precheck(in Input) (d Decision, done bool) {
	det := Details{CurrentPlan: in.CurrentPlan()}

	if open, ok := subscription.OpenRefund(in.Refunds); ok {
		det.ExistingRefundStatus = open.Status
		return ineligible(CodeRefundAlreadyExists,
			fmt.Sprintf("A refund request is already %s for this account", open.Status), det), true
	}

	if in.Subscription == nil || !in.Subscription.IsActive() {
		return ineligible(CodeNoActiveSubscription, "No active subscription found", det), true
	}

	if det.CurrentPlan == plan.TierFree {
		return ineligible(CodeAlreadyOnBaselinePlan, "Already on the free plan, nothing to refund", det), true
	}
	if !e.catalog.Exists(det.CurrentPlan) {
		return ineligible(CodePlanNotRefundable,
			fmt.Sprintf("Plan %q is not eligible for refunds", det.CurrentPlan), det), true
	}

	purchased, err := in.Subscription.CreatedAt.Time()
	if err != nil {
		return ineligible(CodeAgeUndetermined, "Unable to determine subscription age", det), true
	}
	elapsed := max(in.Now.Sub(purchased), 0)
	det.PurchaseDate = purchased
	det.DaysSincePurchase = int(elapsed / (24 * time.Hour))

	if elapsed > Window {
		ago := fmt.Sprintf("%d days ago", det.DaysSincePurchase)
		if det.DaysSincePurchase <= WindowDays {
			ago = fmt.Sprintf("more than %d days ago", WindowDays)
		}
		return ineligible(CodePurchaseTooOld,
			fmt.Sprintf("Purchase was made %s, refunds are only available within %d days", ago, WindowDays), det), true
	}

	return Decision{Details: det}, false
}

func (e *Engine) checkUsage(in Input, det Details) Decision {
	if in.Usage == nil {
		return ineligible(CodeUsageUndetermined, "Unable to determine usage since purchase", det)
	}

	det.UsageMeasured = true
	det.StorageGB = in.Usage.TotalStorageGB
	det.ResourceCount = in.Usage.ResourcesCreatedSince
	det.UpgradePath = in.Path
	if det.UpgradePath == "" {
		det.UpgradePath = plan.PathUnknown
	}

	base := e.catalog.Baselines()
	switch det.CurrentPlan {
	case plan.TierStarter, plan.TierPlus:
		if d, over := exceeds(base.Starter, CodeUsageExceedsStarterBaseline, det); over {
			return d
		}
		det.AppliedLimit = base.Starter.String()

	case plan.TierPro:
		switch det.UpgradePath {
		case plan.PathPlusToPro:
			if d, over := exceeds(base.Plus, CodeUsageExceedsPlusBaseline, det); over {
				return d
			}
			det.AppliedLimit = base.Plus.String()
		case plan.PathStarterToPro:
			if d, over := exceeds(base.Starter, CodeUsageExceedsStarterBaseline, det); over {
				return d
			}
			det.AppliedLimit = base.Starter.String()
		default:
			if d, over := conservative(base, det); over {
				return d
			}
			det.AppliedLimit = base.Starter.String()
		}

	default:
		// Tiers above pro have no single route; apply both ceilings.
		if d, over := conservative(base, det); over {
			return d
		}
		det.AppliedLimit = base.Starter.String()
	}

	return eligible(fmt.Sprintf("Within %d days of purchase, usage within limits", WindowDays), det)
}

// conservative checks the plus storage ceiling and then the starter baseline.
// A starter-baseline breach is flagged for admin review since the path is a guess.
func conservative(base plan.Baselines, det Details) (Decision, bool) {
	if d, over := exceeds(base.Plus, CodeUsageExceedsPlusBaseline, det); over {
		return d, true
	}
	if d, over := exceeds(base.Starter, CodeUsageExceedsStarterBaseline, det); over {
		d.AdminReviewRecommended = true
		d.Reason += " (upgrade path could not be determined, admin review recommended)"
		return d, true
	}
	return Decision{}, false
}

func exceeds(t plan.Thresholds, code Code, det Details) (Decision, bool) {
	if !t.Exceeded(det.StorageGB, det.ResourceCount) {
		return Decision{}, false
	}
	det.AppliedLimit = t.String()
	reason := fmt.Sprintf("Usage exceeds the %s limit: %s (used %s GB", t.Label, t, det.StorageGB.StringFixed(1))
	if t.CheckResources {
		reason += fmt.Sprintf(", %d galleries", det.ResourceCount)
	}
	reason += " since purchase)"
	return ineligible(code, reason, det), true
}
