package lifecycle

import (
	"fmt"

	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// guard returns a denial and true when its precondition does not hold.
type guard func(v *Validator, s subscription.State, target plan.Tier) (Decision, bool)

// Guard order is part of the contract: the first failing guard names the reason.
var (
	subscribeGuards = []guard{
		targetKnown,
		targetNotFree,
		notAlreadySubscribed,
		notCancelPending,
		notProcessing,
	}
	upgradeGuards = []guard{
		targetKnown,
		targetAboveCurrent,
		notCancelPending,
		notProcessing,
		noOpenRefund,
	}
	downgradeGuards = []guard{
		targetKnown,
		targetBelowCurrent,
		noCoveringPendingDowngrade,
		notProcessing,
		notCancelPending,
		noOpenRefund,
	}
	cancelGuards = []guard{
		onPaidPlan,
		notAlreadyCanceled,
		notProcessing,
		hasGatewaySubscription,
		noOpenRefund,
	}
	reactivateGuards = []guard{
		cancelIsPending,
		periodNotEnded,
		notProcessing,
		hasGatewaySubscription,
	}
	refundGuards = []guard{
		onPaidPlan,
		noExistingRefund,
		notProcessing,
		hasGatewaySubscription,
		notCancelPending,
	}
)

var pass = Decision{}

func targetKnown(v *Validator, _ subscription.State, target plan.Tier) (Decision, bool) {
	if !v.catalog.Exists(target) {
		return deny(CodeInvalidPlan, fmt.Sprintf("Unknown plan %q", target)), true
	}
	return pass, false
}

func targetNotFree(_ *Validator, _ subscription.State, target plan.Tier) (Decision, bool) {
	if target == plan.TierFree {
		return deny(CodeInvalidSubscription, "The free plan does not need a subscription"), true
	}
	return pass, false
}

func notAlreadySubscribed(v *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if s.CurrentPlan.IsPaid() && s.HasGatewaySubscription {
		return deny(CodeAlreadySubscribed, fmt.Sprintf(
			"You already have an active %s subscription; upgrade or downgrade instead",
			v.catalog.DisplayName(s.CurrentPlan))), true
	}
	return pass, false
}

func targetAboveCurrent(v *Validator, s subscription.State, target plan.Tier) (Decision, bool) {
	current, ok := v.catalog.LevelOf(s.CurrentPlan)
	if !ok {
		return deny(CodeInvalidPlan, fmt.Sprintf("Current plan %q is not recognized", s.CurrentPlan)), true
	}
	next, _ := v.catalog.LevelOf(target)
	if next <= current {
		return deny(CodeInvalidUpgrade, fmt.Sprintf(
			"Cannot upgrade from %s to %s: the target plan must be higher than the current plan",
			v.catalog.DisplayName(s.CurrentPlan), v.catalog.DisplayName(target))), true
	}
	return pass, false
}

func targetBelowCurrent(v *Validator, s subscription.State, target plan.Tier) (Decision, bool) {
	current, ok := v.catalog.LevelOf(s.CurrentPlan)
	if !ok {
		return deny(CodeInvalidPlan, fmt.Sprintf("Current plan %q is not recognized", s.CurrentPlan)), true
	}
	next, _ := v.catalog.LevelOf(target)
	if next >= current {
		return deny(CodeInvalidDowngrade, fmt.Sprintf(
			"Cannot downgrade from %s to %s: the target plan must be lower than the current plan",
			v.catalog.DisplayName(s.CurrentPlan), v.catalog.DisplayName(target))), true
	}
	return pass, false
}

// noCoveringPendingDowngrade rejects a downgrade when one to an equal or lower tier
// is already scheduled. A deeper downgrade than the scheduled one is allowed.
func noCoveringPendingDowngrade(v *Validator, s subscription.State, target plan.Tier) (Decision, bool) {
	if s.PendingPlan == "" {
		return pass, false
	}
	pending, ok := v.catalog.LevelOf(s.PendingPlan)
	if !ok {
		// An unrecognized scheduled plan still blocks: it cannot be proven harmless.
		return deny(CodePendingDowngrade, fmt.Sprintf("A change to plan %q is already scheduled", s.PendingPlan)), true
	}
	next, _ := v.catalog.LevelOf(target)
	if pending <= next {
		return deny(CodePendingDowngrade, fmt.Sprintf(
			"A downgrade to %s is already scheduled for the end of the billing period",
			v.catalog.DisplayName(s.PendingPlan))), true
	}
	return pass, false
}

func notCancelPending(_ *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if s.CancelPending {
		return deny(CodeSubscriptionCanceled,
			"Your subscription is set to cancel at the end of the billing period; reactivate it first"), true
	}
	return pass, false
}

func notAlreadyCanceled(_ *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if s.CancelPending {
		return deny(CodeAlreadyCanceled, "Your subscription is already set to cancel at the end of the billing period"), true
	}
	return pass, false
}

func cancelIsPending(_ *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if !s.CancelPending {
		return deny(CodeNotCanceled, "Your subscription is not scheduled for cancellation"), true
	}
	return pass, false
}

func periodNotEnded(_ *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if s.PeriodEnded() {
		return deny(CodePeriodEnded, fmt.Sprintf(
			"The billing period ended on %s; subscribe again instead",
			s.PeriodEnd.UTC().Format("2006-01-02 15:04 MST"))), true
	}
	return pass, false
}

func notProcessing(_ *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if s.Processing {
		return deny(CodeProcessingChange, "Another subscription change is being processed; try again shortly"), true
	}
	return pass, false
}

func onPaidPlan(_ *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if s.IsFree() {
		return deny(CodeNoSubscription, "You are on the free plan and have no paid subscription"), true
	}
	return pass, false
}

func hasGatewaySubscription(_ *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if !s.HasGatewaySubscription {
		return deny(CodeNoSubscription, "No active paid subscription was found for your account"), true
	}
	return pass, false
}

func noOpenRefund(_ *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if s.HasOpenRefund {
		return deny(CodeRefundPending, fmt.Sprintf(
			"A refund request is %s; plan changes are blocked until it is resolved", s.OpenRefundStatus)), true
	}
	return pass, false
}

func noExistingRefund(_ *Validator, s subscription.State, _ plan.Tier) (Decision, bool) {
	if s.HasOpenRefund {
		return deny(CodeRefundExists, fmt.Sprintf("You already have a %s refund request", s.OpenRefundStatus)), true
	}
	return pass, false
}
