package subscription

import "errors"

var (
	ErrEmptyTimestamp       = errors.New("timestamp is empty")
	ErrInvalidTimestamp     = errors.New("timestamp is not epoch seconds or ISO-8601")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUsageUnavailable     = errors.New("usage snapshot unavailable")
	ErrAuditUnavailable     = errors.New("audit history unavailable")
	ErrRefundsUnavailable   = errors.New("refund history unavailable")
)
