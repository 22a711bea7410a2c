// Package billing drives plan changes and refund requests end to end.
//
// Service is the thin layer around the pure lifecycle validator and refund engine.
// For every request it loads the user's state, asks the validator, and only then
// touches the outside world:
//
//  1. claim the subscription's processing flag with a compare-and-swap on the
//     record version, so two concurrent changes cannot both pass the guards
//  2. call the payment gateway
//  3. persist the new record, which also releases the claim
//  4. append an audit entry, send a notice and record metrics
//
// A failed gateway call releases the claim and leaves the stored record as it was.
// Refund requests are inserted through Store.CreateRefund, which must reject a
// second open refund atomically (the Postgres store does it with a partial unique
// index), so a race between two requests yields ErrRefundExists for the loser.
//
// Rejections by the validator or the refund engine come back as *RejectedError,
// carrying the machine-readable code for clients:
//
//	res, err := svc.Change(ctx, userID, lifecycle.ActionUpgrade, &target)
//	var rej *billing.RejectedError
//	if errors.As(err, &rej) {
//		// rej.Code, rej.Reason
//	}
//
// PaddleGateway implements Gateway on top of the official Paddle SDK.
package billing
