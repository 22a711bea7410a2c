// Package lifecycle decides whether a requested billing-plan transition is legal.
//
// Six transitions are guarded: subscribe, upgrade, downgrade, cancel, reactivate and
// refund. Each one is an ordered list of guards evaluated against an immutable
// subscription.State; the first guard that fails decides the outcome, so callers can
// branch on Decision.Code rather than only on Decision.Valid.
//
// The validator performs no I/O and keeps no state between calls: the same state and
// arguments always produce the same Decision. Anything that changes a subscription
// (claiming the processing lock, calling the payment gateway, persisting the result)
// belongs to the caller.
//
//	v := lifecycle.NewValidator(plan.MustDefault())
//
//	target := plan.TierPro
//	d := v.ValidateTransition(state, lifecycle.ActionUpgrade, &target)
//	if !d.Valid {
//		return d.Code
//	}
//
// AllowedTransitions enumerates every action/target pair that currently passes by
// probing ValidateTransition itself; it never duplicates guard logic.
package lifecycle
