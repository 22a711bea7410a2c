package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// RefundID records the refund request identifier under the key "refund_id".
// If id is nil, it returns an empty Attr.
func RefundID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("refund_id", id)
}

// GatewaySubscriptionID records the payment provider's subscription id.
// An empty id returns an empty Attr.
func GatewaySubscriptionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("gateway_subscription_id", id)
}

// Plan records a plan tier under the key "plan".
func Plan(tier string) slog.Attr {
	return slog.String("plan", tier)
}

// TargetPlan records the requested plan tier under the key "target_plan".
func TargetPlan(tier string) slog.Attr {
	return slog.String("target_plan", tier)
}

// Action records a lifecycle action under the key "action".
func Action(name string) slog.Attr {
	return slog.String("action", name)
}

// Code records a decision code under the key "code".
func Code(code string) slog.Attr {
	return slog.String("code", code)
}

// UpgradePath records the inferred upgrade path under the key "upgrade_path".
func UpgradePath(path string) slog.Attr {
	return slog.String("upgrade_path", path)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
