// Package usage derives a user's resource consumption at query time.
//
// Nothing here keeps counters. Storage is the byte total of the objects under the
// user's prefix in the media bucket; galleries are counted from PostgreSQL by
// creation time. Aggregator runs both concurrently, converts bytes to decimal
// gigabytes and optionally memoizes the snapshot in Redis for a short TTL, so
// repeated eligibility checks within one support session stay cheap.
//
// Any component failure fails the whole snapshot. Callers treat that as "usage
// undetermined" rather than as zero usage.
package usage
