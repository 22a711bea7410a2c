package lifecycle

import (
	"fmt"

	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// Validator holds the guard functions for every transition. It is immutable and
// safe for concurrent use.
type Validator struct {
	catalog *plan.Catalog
}

// NewValidator creates a validator bound to a plan catalog.
// Panics if catalog is nil to fail fast during initialization.
func NewValidator(catalog *plan.Catalog) *Validator {
	if catalog == nil {
		panic("lifecycle: plan catalog is required")
	}
	return &Validator{catalog: catalog}
}

func (v *Validator) run(guards []guard, s subscription.State, target plan.Tier, ok string) Decision {
	for _, g := range guards {
		if d, failed := g(v, s, target); failed {
			return d
		}
	}
	return allow(ok)
}

// Subscribe checks a first paid subscription to target.
func (v *Validator) Subscribe(s subscription.State, target plan.Tier) Decision {
	return v.run(subscribeGuards, s, target,
		fmt.Sprintf("Subscription to %s is allowed", v.catalog.DisplayName(target)))
}

// Upgrade checks a move to a strictly higher tier.
func (v *Validator) Upgrade(s subscription.State, target plan.Tier) Decision {
	return v.run(upgradeGuards, s, target,
		fmt.Sprintf("Upgrade from %s to %s is allowed",
			v.catalog.DisplayName(s.CurrentPlan), v.catalog.DisplayName(target)))
}

// Downgrade checks a move to a strictly lower tier, applied at period end.
func (v *Validator) Downgrade(s subscription.State, target plan.Tier) Decision {
	return v.run(downgradeGuards, s, target,
		fmt.Sprintf("Downgrade from %s to %s is allowed",
			v.catalog.DisplayName(s.CurrentPlan), v.catalog.DisplayName(target)))
}

// Cancel checks scheduling a cancellation at the end of the billing period.
func (v *Validator) Cancel(s subscription.State) Decision {
	return v.run(cancelGuards, s, "", "Cancellation is allowed")
}

// Reactivate checks undoing a scheduled cancellation.
func (v *Validator) Reactivate(s subscription.State) Decision {
	return v.run(reactivateGuards, s, "", "Reactivation is allowed")
}

// Refund checks whether a refund request may be filed at all. Whether the refund is
// granted is decided by the refund eligibility engine.
func (v *Validator) Refund(s subscription.State) Decision {
	return v.run(refundGuards, s, "", "Refund request is allowed")
}

// ValidateTransition dispatches to the guard set of action.
// target is required for subscribe, upgrade and downgrade and ignored otherwise.
func (v *Validator) ValidateTransition(s subscription.State, action Action, target *plan.Tier) Decision {
	if !action.IsKnown() {
		return deny(CodeInvalidAction, fmt.Sprintf("Unknown action %q", action))
	}
	if action.RequiresPlan() && (target == nil || *target == "") {
		return deny(CodeMissingPlan, fmt.Sprintf("Action %q requires a target plan", action))
	}

	switch action {
	case ActionSubscribe:
		return v.Subscribe(s, *target)
	case ActionUpgrade:
		return v.Upgrade(s, *target)
	case ActionDowngrade:
		return v.Downgrade(s, *target)
	case ActionCancel:
		return v.Cancel(s)
	case ActionReactivate:
		return v.Reactivate(s)
	default:
		return v.Refund(s)
	}
}
