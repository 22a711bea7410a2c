package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/gallerybilling/pkg/config"
	"github.com/dmitrymomot/gallerybilling/pkg/logger"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
)

type rootOptions struct {
	envFile  string
	plans    string
	app      config.App
	log      *slog.Logger
	catalog  *plan.Catalog
	textfile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Subscription lifecycle and refund eligibility tooling",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment variables from this file first")
	root.PersistentFlags().StringVar(&opts.plans, "plans", "", "plan catalog YAML (overrides PLAN_CATALOG_FILE)")
	root.PersistentFlags().StringVar(&opts.textfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newVersionCmd(),
		newPlansCmd(opts),
		newValidateCmd(opts),
		newEvaluateCmd(opts),
		newMigrateCmd(opts),
		newHealthCmd(opts),
		newTransitionsCmd(opts),
		newEligibilityCmd(opts),
		newChangeCmd(opts),
		newRefundCmd(opts),
	)
	return root
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	if o.envFile != "" {
		if err := config.LoadEnv(o.envFile); err != nil {
			return err
		}
	}
	if err := config.Load(&o.app); err != nil {
		return err
	}
	level, err := o.app.Level()
	if err != nil {
		return err
	}
	o.log = logger.New(
		logger.WithEnvironment(o.app.Env, o.app.ServiceName),
		logger.WithLevel(level),
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithContextExtractors(logger.BillingContextExtractor()),
	)
	logger.SetAsDefault(o.log)

	path := o.plans
	if path == "" {
		path = o.app.PlanCatalogFile
	}
	if path == "" {
		o.catalog = plan.MustDefault()
		return nil
	}
	o.catalog, err = plan.Load(cmd.Context(), plan.NewYAMLFileSource(path))
	return err
}

func (o *rootOptions) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logger.WithOperationContext(ctx, cmd.Name())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "billingctl %s\n", Version)
			if GitCommit != "unknown" {
				fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", GitCommit)
			}
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
