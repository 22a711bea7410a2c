package lifecycle

import (
	"fmt"

	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// Option is one transition that currently validates.
type Option struct {
	Action      Action    `json:"action"`
	Target      plan.Tier `json:"target,omitempty"`
	Description string    `json:"description"`
}

// AllowedTransitions lists every action/target pair that passes ValidateTransition
// for s, ordered by action and then by ascending tier.
func (v *Validator) AllowedTransitions(s subscription.State) []Option {
	var out []Option
	for _, action := range Actions() {
		if !action.RequiresPlan() {
			if v.ValidateTransition(s, action, nil).Valid {
				out = append(out, Option{Action: action, Description: v.describe(action, "")})
			}
			continue
		}
		for _, tier := range v.catalog.Tiers() {
			target := tier
			if v.ValidateTransition(s, action, &target).Valid {
				out = append(out, Option{Action: action, Target: target, Description: v.describe(action, target)})
			}
		}
	}
	return out
}

// CanFire reports whether any target makes action valid.
func (v *Validator) CanFire(s subscription.State, action Action) bool {
	for _, o := range v.AllowedTransitions(s) {
		if o.Action == action {
			return true
		}
	}
	return false
}

func (v *Validator) describe(action Action, target plan.Tier) string {
	name := v.catalog.DisplayName(target)
	switch action {
	case ActionSubscribe:
		return fmt.Sprintf("Subscribe to %s", name)
	case ActionUpgrade:
		return fmt.Sprintf("Upgrade to %s now", name)
	case ActionDowngrade:
		return fmt.Sprintf("Switch to %s at the end of the billing period", name)
	case ActionCancel:
		return "Cancel at the end of the billing period"
	case ActionReactivate:
		return "Keep the subscription and undo the scheduled cancellation"
	case ActionRefund:
		return "Request a refund"
	}
	return string(action)
}
