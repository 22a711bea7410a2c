package lifecycle

// Code is the machine-readable outcome of a transition check.
type Code string

const (
	CodeOK                   Code = "OK"
	CodeInvalidPlan          Code = "INVALID_PLAN"
	CodeInvalidSubscription  Code = "INVALID_SUBSCRIPTION"
	CodeAlreadySubscribed    Code = "ALREADY_SUBSCRIBED"
	CodeInvalidUpgrade       Code = "INVALID_UPGRADE"
	CodeInvalidDowngrade     Code = "INVALID_DOWNGRADE"
	CodePendingDowngrade     Code = "PENDING_DOWNGRADE"
	CodeSubscriptionCanceled Code = "SUBSCRIPTION_CANCELED"
	CodeProcessingChange     Code = "PROCESSING_CHANGE"
	CodeRefundPending        Code = "REFUND_PENDING"
	CodeNoSubscription       Code = "NO_SUBSCRIPTION"
	CodeAlreadyCanceled      Code = "ALREADY_CANCELED"
	CodeNotCanceled          Code = "NOT_CANCELED"
	CodePeriodEnded          Code = "PERIOD_ENDED"
	CodeRefundExists         Code = "REFUND_EXISTS"
	CodeMissingPlan          Code = "MISSING_PLAN"
	CodeInvalidAction        Code = "INVALID_ACTION"
)

// Decision is the result of validating one transition. Plain data, safe to serialize.
type Decision struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
	Code   Code   `json:"code"`
}

func allow(reason string) Decision {
	return Decision{Valid: true, Reason: reason, Code: CodeOK}
}

func deny(code Code, reason string) Decision {
	return Decision{Valid: false, Reason: reason, Code: code}
}
