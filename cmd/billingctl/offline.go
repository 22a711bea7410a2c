package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/gallerybilling/pkg/auditlog"
	"github.com/dmitrymomot/gallerybilling/pkg/lifecycle"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/refund"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
	"github.com/dmitrymomot/gallerybilling/pkg/upgradepath"
)

// snapshot is the JSON document the offline commands read.
type snapshot struct {
	Now          time.Time                   `json:"now"`
	User         subscription.User           `json:"user"`
	Subscription *subscription.Record        `json:"subscription"`
	Refunds      []subscription.RefundRecord `json:"refunds"`
	Usage        *subscription.UsageSnapshot `json:"usage"`
	AuditHistory []subscription.AuditEntry   `json:"audit_history"`
}

func readSnapshot(path string) (snapshot, error) {
	var s snapshot
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("decode %s: %w", path, err)
	}
	if s.Now.IsZero() {
		s.Now = time.Now().UTC()
	}
	return s, nil
}

func newPlansCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "Print the plan catalog and refund baselines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			type row struct {
				Tier         plan.Tier `json:"tier"`
				Name         string    `json:"name"`
				StorageGB    string    `json:"storage_gb"`
				GalleryLimit int64     `json:"gallery_limit"`
			}
			var rows []row
			for _, t := range opts.catalog.Tiers() {
				p, _ := opts.catalog.Plan(t)
				rows = append(rows, row{Tier: t, Name: p.Name, StorageGB: p.StorageQuotaGB.String(), GalleryLimit: p.GalleryLimit})
			}
			b := opts.catalog.Baselines()
			return writeJSON(cmd, map[string]any{
				"plans": rows,
				"baselines": map[string]string{
					"starter": b.Starter.String(),
					"plus":    b.Plus.String(),
				},
			})
		},
	}
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var (
		input   string
		action  string
		target  string
		allowed bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a lifecycle transition against a JSON snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := readSnapshot(input)
			if err != nil {
				return err
			}
			state := subscription.NewState(snap.User, snap.Subscription, snap.Refunds, snap.Now)
			v := lifecycle.NewValidator(opts.catalog)

			if allowed {
				return writeJSON(cmd, v.AllowedTransitions(state))
			}
			var t *plan.Tier
			if target != "" {
				tier := plan.Tier(target)
				t = &tier
			}
			return writeJSON(cmd, v.ValidateTransition(state, lifecycle.Action(action), t))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "snapshot JSON file")
	cmd.Flags().StringVarP(&action, "action", "a", "", "subscribe, upgrade, downgrade, cancel, reactivate or refund")
	cmd.Flags().StringVarP(&target, "target", "t", "", "target plan for subscribe, upgrade and downgrade")
	cmd.Flags().BoolVar(&allowed, "allowed", false, "list every transition that currently validates")
	_ = cmd.MarkFlagRequired("input")
	cmd.MarkFlagsOneRequired("action", "allowed")
	return cmd
}

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate refund eligibility from a JSON snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := readSnapshot(input)
			if err != nil {
				return err
			}
			engine := refund.NewEngine(opts.catalog)
			in := refund.Input{
				User:         snap.User,
				Subscription: snap.Subscription,
				Refunds:      snap.Refunds,
				Usage:        snap.Usage,
				Now:          snap.Now,
			}

			var res *upgradepath.Resolution
			if _, done := engine.Precheck(in); !done && in.Usage != nil {
				ctx := opts.context(cmd)
				// audit_history is newest first, the store hands entries back in reverse insertion order
				history := auditlog.NewMemory()
				for _, e := range slices.Backward(snap.AuditHistory) {
					_ = history.RecordAudit(ctx, snap.User.ID, e)
				}
				r := upgradepath.New(
					upgradepath.WithLogger(opts.log),
					upgradepath.WithHistoryLimit(opts.app.AuditHistoryLimit),
				).ResolveFor(ctx, snap.User.ID, snap.Subscription.CreatedAt, history)
				in.Path = r.Path
				res = &r
			}

			return writeJSON(cmd, struct {
				Decision   refund.Decision         `json:"decision"`
				Resolution *upgradepath.Resolution `json:"resolution,omitempty"`
			}{engine.Evaluate(in), res})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "snapshot JSON file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
