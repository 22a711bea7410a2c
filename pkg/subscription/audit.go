package subscription

import "strings"

// AuditEntry is one row of a user's billing audit trail as stored.
// Plan names are raw and may use legacy aliases.
type AuditEntry struct {
	Timestamp string `json:"timestamp" bson:"timestamp"`
	Action    string `json:"action" bson:"action"`
	FromPlan  string `json:"from_plan" bson:"from_plan"`
	ToPlan    string `json:"to_plan" bson:"to_plan"`
}

// upgradeActions are the audit actions that can move a user to a higher paid plan.
var upgradeActions = map[string]struct{}{
	"upgrade":                    {},
	"plan_upgrade":               {},
	"subscription_upgraded":      {},
	"subscription_upgrade":       {},
	"checkout_completed":         {},
	"checkout.session.completed": {},
	"subscription_created":       {},
}

// IsUpgrade reports whether the entry records an upgrade or a completed checkout.
func (e AuditEntry) IsUpgrade() bool {
	_, ok := upgradeActions[strings.ToLower(strings.TrimSpace(e.Action))]
	return ok
}
