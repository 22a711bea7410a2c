// Package auditlog stores the billing audit trail: one entry per applied plan
// change, cancellation, reactivation or refund request.
//
// The trail is append-only. It is read back newest first, bounded by a limit,
// by upgrade path resolution. MongoStore keeps it in a MongoDB collection; Memory
// is an in-process implementation for local runs and tests.
package auditlog
