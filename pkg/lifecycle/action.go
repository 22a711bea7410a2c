package lifecycle

// Action names a requested transition.
type Action string

const (
	ActionSubscribe  Action = "subscribe"
	ActionUpgrade    Action = "upgrade"
	ActionDowngrade  Action = "downgrade"
	ActionCancel     Action = "cancel"
	ActionReactivate Action = "reactivate"
	ActionRefund     Action = "refund"
)

// Actions lists every transition in probing order.
func Actions() []Action {
	return []Action{
		ActionSubscribe,
		ActionUpgrade,
		ActionDowngrade,
		ActionCancel,
		ActionReactivate,
		ActionRefund,
	}
}

// RequiresPlan reports whether the action needs a target plan.
func (a Action) RequiresPlan() bool {
	switch a {
	case ActionSubscribe, ActionUpgrade, ActionDowngrade:
		return true
	}
	return false
}

// IsKnown reports whether a is one of the guarded transitions.
func (a Action) IsKnown() bool {
	switch a {
	case ActionSubscribe, ActionUpgrade, ActionDowngrade, ActionCancel, ActionReactivate, ActionRefund:
		return true
	}
	return false
}

func (a Action) String() string {
	return string(a)
}
