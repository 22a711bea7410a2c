// Package upgradepath infers which upgrade route produced a user's current paid plan.
//
// The refund engine needs to know whether a Pro customer came from Starter or from
// Plus, because the two routes have different usage ceilings. That information only
// exists in the billing audit trail, so the resolver scans a bounded slice of it:
//
//  1. keep entries at or after the subscription's creation time (all entries if any
//     timestamp cannot be parsed)
//  2. keep upgrade and checkout-completed actions
//  3. take the earliest of those
//  4. normalize legacy plan names and map the (from, to) pair to a plan.Path
//  5. when the pair is not a known route, look for any earlier move to Plus in the
//     window to tell plus_to_pro from starter_to_pro
//
// Resolution never fails. Malformed or missing data yields plan.PathUnknown and a log
// line, and callers apply the most conservative thresholds for an unknown path.
package upgradepath
