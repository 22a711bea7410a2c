package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/gallerybilling/pkg/auditlog"
	"github.com/dmitrymomot/gallerybilling/pkg/billing"
	"github.com/dmitrymomot/gallerybilling/pkg/config"
	"github.com/dmitrymomot/gallerybilling/pkg/lifecycle"
	"github.com/dmitrymomot/gallerybilling/pkg/logger"
	"github.com/dmitrymomot/gallerybilling/pkg/pgstore"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/usage"
)

// withService wires the runtime for one command, runs fn and tears everything down.
func withService(cmd *cobra.Command, opts *rootOptions, userID string, fn func(ctx context.Context, svc *billing.Service, id uuid.UUID) error) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	ctx := logger.WithUserIDContext(opts.context(cmd), id)

	rt, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(context.WithoutCancel(ctx)); cerr != nil {
			opts.log.WarnContext(ctx, "shutdown", logger.Error(cerr))
		}
	}()

	runErr := fn(ctx, rt.service, id)
	if opts.textfile != "" {
		if err := prometheus.WriteToTextfile(opts.textfile, rt.registry); err != nil {
			opts.log.WarnContext(ctx, "failed to write metrics textfile", logger.Error(err))
		}
	}
	return runErr
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := opts.context(cmd)
			var cfg pgstore.Config
			if err := config.Load(&cfg); err != nil {
				return err
			}
			pool, err := pgstore.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			return pgstore.Migrate(ctx, pool, cfg, opts.log)
		},
	}
}

func newTransitionsCmd(opts *rootOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "transitions",
		Short: "Show a user's subscription state and the transitions it allows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, userID, func(ctx context.Context, svc *billing.Service, id uuid.UUID) error {
				st, err := svc.State(ctx, id)
				if err != nil {
					return err
				}
				allowed, err := svc.AllowedTransitions(ctx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd, map[string]any{"state": st, "allowed": allowed})
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newEligibilityCmd(opts *rootOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Check refund eligibility without filing a request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, userID, func(ctx context.Context, svc *billing.Service, id uuid.UUID) error {
				d, err := svc.CheckRefund(ctx, id)
				if err != nil {
					return err
				}
				return writeJSON(cmd, d)
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newChangeCmd(opts *rootOptions) *cobra.Command {
	var userID, action, target string
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Validate and apply a subscription change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var t *plan.Tier
			if target != "" {
				tier := plan.Tier(target)
				t = &tier
			}
			return withService(cmd, opts, userID, func(ctx context.Context, svc *billing.Service, id uuid.UUID) error {
				res, err := svc.Change(ctx, id, lifecycle.Action(action), t)
				if err != nil {
					var rejected *billing.RejectedError
					if errors.As(err, &rejected) {
						_ = writeJSON(cmd, rejected)
					}
					return err
				}
				return writeJSON(cmd, res)
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID")
	cmd.Flags().StringVarP(&action, "action", "a", "", "subscribe, upgrade, downgrade, cancel or reactivate")
	cmd.Flags().StringVarP(&target, "target", "t", "", "target plan")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func newRefundCmd(opts *rootOptions) *cobra.Command {
	var userID, reason string
	cmd := &cobra.Command{
		Use:   "refund",
		Short: "File a refund request if the user is eligible",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, userID, func(ctx context.Context, svc *billing.Service, id uuid.UUID) error {
				r, err := svc.RequestRefund(ctx, id, reason)
				if err != nil {
					var rejected *billing.RejectedError
					if errors.As(err, &rejected) {
						_ = writeJSON(cmd, rejected)
					}
					return err
				}
				return writeJSON(cmd, r)
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID")
	cmd.Flags().StringVar(&reason, "reason", "", "reason given by the customer")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to PostgreSQL, MongoDB and, when enabled, Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := opts.context(cmd)
			checks := map[string]func(context.Context) error{}

			var pgCfg pgstore.Config
			if err := config.Load(&pgCfg); err != nil {
				return err
			}
			pool, err := pgstore.Connect(ctx, pgCfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			checks["postgres"] = pgstore.Healthcheck(pool)

			var mongoCfg auditlog.Config
			if err := config.Load(&mongoCfg); err != nil {
				return err
			}
			client, err := auditlog.Connect(ctx, mongoCfg)
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect(context.WithoutCancel(ctx)) }()
			checks["mongodb"] = auditlog.Healthcheck(client)

			if opts.app.UsageCacheEnabled {
				var redisCfg usage.RedisConfig
				if err := config.Load(&redisCfg); err != nil {
					return err
				}
				rdb, err := usage.ConnectRedis(ctx, redisCfg)
				if err != nil {
					return err
				}
				defer rdb.Close()
				checks["redis"] = usage.RedisHealthcheck(rdb)
			}

			status := make(map[string]string, len(checks))
			var errs []error
			for name, check := range checks {
				if err := check(ctx); err != nil {
					status[name] = err.Error()
					errs = append(errs, err)
					continue
				}
				status[name] = "ok"
			}
			if err := writeJSON(cmd, status); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
}
