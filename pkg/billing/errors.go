package billing

import "errors"

var (
	ErrTransitionRejected   = errors.New("billing: transition rejected")
	ErrChangeInProgress     = errors.New("billing: another subscription change is in progress")
	ErrRefundExists         = errors.New("billing: an open refund request already exists")
	ErrStaleRecord          = errors.New("billing: subscription record changed concurrently")
	ErrSubscriptionNotFound = errors.New("billing: subscription not found")
	ErrUserNotFound         = errors.New("billing: user not found")
	ErrFailedToLoadState    = errors.New("billing: failed to load subscription state")
	ErrFailedToSave         = errors.New("billing: failed to save subscription")
	ErrGatewayFailed        = errors.New("billing: payment gateway call failed")

	// Gateway configuration and responses
	ErrMissingAPIKey              = errors.New("billing: gateway API key is required")
	ErrInvalidGatewayEnvironment  = errors.New("billing: invalid gateway environment")
	ErrMissingPriceID             = errors.New("billing: price ID is required")
	ErrMissingGatewaySubscription = errors.New("billing: gateway subscription ID is required")
	ErrNoCheckoutURL              = errors.New("billing: no checkout URL returned from gateway")
)
