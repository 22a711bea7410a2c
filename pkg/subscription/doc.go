// Package subscription defines the billing records the lifecycle validator and the
// refund eligibility engine reason about, and the read-only contracts through which
// those records are fetched.
//
// Records are plain typed structs. Anything that arrives from outside in a loose
// format (timestamps stored as epoch seconds or ISO text, plan names from old audit
// rows) is kept raw at this layer and parsed explicitly by the consumer, so a parse
// failure becomes a decision branch rather than a silently defaulted value.
//
// State is the immutable snapshot built from a Record, the owning User and the
// user's non-terminal refunds. The validator never looks at anything else.
package subscription
