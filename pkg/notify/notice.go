package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/mail"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the event a notice reports.
type Kind string

const (
	KindPlanUpgraded          Kind = "plan_upgraded"
	KindDowngradeScheduled    Kind = "downgrade_scheduled"
	KindCancellationScheduled Kind = "cancellation_scheduled"
	KindReactivated           Kind = "reactivated"
	KindRefundRequested       Kind = "refund_requested"
)

// Notice is a customer-facing billing message. Plan fields hold display names.
type Notice struct {
	Kind        Kind      `json:"kind"`
	UserID      uuid.UUID `json:"user_id"`
	To          string    `json:"to"`
	FromPlan    string    `json:"from_plan,omitempty"`
	ToPlan      string    `json:"to_plan,omitempty"`
	EffectiveAt time.Time `json:"effective_at,omitzero"`
	// QuotaReduced is set for downgrades that lower the storage quota or gallery limit.
	QuotaReduced   bool   `json:"quota_reduced,omitempty"`
	StorageQuotaGB string `json:"storage_quota_gb,omitempty"`
	GalleryLimit   int64  `json:"gallery_limit,omitempty"`
}

// Validate checks the recipient and kind.
func (n Notice) Validate() error {
	if n.To == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidNotice)
	}
	if _, err := mail.ParseAddress(n.To); err != nil {
		return fmt.Errorf("%w: recipient must be a valid email address", ErrInvalidNotice)
	}
	if _, ok := subjects[n.Kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
	return nil
}

var subjects = map[Kind]string{
	KindPlanUpgraded:          "Your plan has been upgraded",
	KindDowngradeScheduled:    "Your plan change is scheduled",
	KindCancellationScheduled: "Your subscription will end",
	KindReactivated:           "Your subscription is active again",
	KindRefundRequested:       "We received your refund request",
}

var bodies = template.Must(template.New("notice").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.UTC().Format("January 2, 2006") },
}).Parse(`
{{define "plan_upgraded"}}<p>You are now on the <strong>{{.ToPlan}}</strong> plan. The new limits apply right away.</p>{{end}}
{{define "downgrade_scheduled"}}<p>Your plan will change from <strong>{{.FromPlan}}</strong> to <strong>{{.ToPlan}}</strong> on {{date .EffectiveAt}}.</p>
{{if .QuotaReduced}}<p>The new plan includes {{.StorageQuotaGB}} GB of storage{{if ge .GalleryLimit 0}} and {{.GalleryLimit}} galleries{{end}}. Content above these limits stays available until the change.</p>{{end}}{{end}}
{{define "cancellation_scheduled"}}<p>Your <strong>{{.FromPlan}}</strong> subscription stays active until {{date .EffectiveAt}}, then your account moves to the Free plan. You can reactivate any time before that date.</p>{{end}}
{{define "reactivated"}}<p>Your <strong>{{.FromPlan}}</strong> subscription will keep renewing as usual.</p>{{end}}
{{define "refund_requested"}}<p>We received your refund request for the <strong>{{.FromPlan}}</strong> plan. Our team will review it shortly.</p>{{end}}
`))

// Render returns the subject and HTML body for n.
func Render(n Notice) (subject, html string, err error) {
	subject, ok := subjects[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownKind, n.Kind)
	}
	var buf bytes.Buffer
	if err := bodies.ExecuteTemplate(&buf, string(n.Kind), n); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrFailedToRender, err)
	}
	return subject, buf.String(), nil
}
