// Package refund decides whether a paid customer can still get their money back.
//
// A refund is possible within 14 days of purchase, as long as the customer has not
// consumed more than the baseline of the plan they upgraded from. Which baseline
// applies depends on the inferred upgrade path (see package upgradepath):
//
//	plus                 starter baseline (5 GB or 5 galleries)
//	pro via plus         plus baseline (50 GB, gallery count ignored)
//	pro via starter      starter baseline
//	pro, path unknown    plus ceiling first, then starter baseline with admin review
//
// Engine.Evaluate is a pure function over already fetched data. Checker gathers
// that data through the subscription fetch contracts and fails closed: when usage,
// age or refund state cannot be determined the customer is reported ineligible with
// an explicit code, never approved by default.
//
// All limits are strict: usage equal to a limit is within it.
package refund
