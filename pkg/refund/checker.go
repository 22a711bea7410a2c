package refund

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/gallerybilling/pkg/logger"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
	"github.com/dmitrymomot/gallerybilling/pkg/upgradepath"
)

// Checker gathers the inputs of an eligibility decision from the fetch contracts
// and runs the engine on them.
type Checker struct {
	engine        *Engine
	subscriptions subscription.SubscriptionFetcher
	refunds       subscription.RefundFetcher
	usage         subscription.UsageFetcher
	audit         subscription.AuditFetcher
	resolver      *upgradepath.Resolver
	logger        *slog.Logger
	now           func() time.Time
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithLogger sets the logger. The resolver created by default shares it.
func WithLogger(l *slog.Logger) CheckerOption {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithResolver replaces the upgrade path resolver.
func WithResolver(r *upgradepath.Resolver) CheckerOption {
	return func(c *Checker) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CheckerOption {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// NewChecker creates a Checker. It panics if any collaborator is nil.
func NewChecker(
	engine *Engine,
	subs subscription.SubscriptionFetcher,
	refunds subscription.RefundFetcher,
	usage subscription.UsageFetcher,
	audit subscription.AuditFetcher,
	opts ...CheckerOption,
) *Checker {
	if engine == nil {
		panic("refund: engine is required")
	}
	if subs == nil || refunds == nil || usage == nil || audit == nil {
		panic("refund: subscription, refund, usage and audit fetchers are required")
	}

	c := &Checker{
		engine:        engine,
		subscriptions: subs,
		refunds:       refunds,
		usage:         usage,
		audit:         audit,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolver == nil {
		c.resolver = upgradepath.New(upgradepath.WithLogger(c.logger))
	}
	return c
}

// Check decides whether the user can request a refund now.
// Fetch failures produce an ineligible decision, except for the audit history,
// whose absence only makes the upgrade path unknown.
func (c *Checker) Check(ctx context.Context, user subscription.User) Decision {
	log := c.logger.With(logger.UserID(user.ID))
	in := Input{User: user, Now: c.now()}

	refunds, err := c.refunds.FetchNonTerminalRefunds(ctx, user.ID)
	if err != nil {
		log.ErrorContext(ctx, "failed to fetch refunds", logger.Error(err))
		return c.done(ctx, log, ineligible(CodeRefundStatusUndetermined,
			"Unable to determine existing refund requests", Details{CurrentPlan: in.CurrentPlan()}))
	}
	in.Refunds = refunds

	record, err := c.subscriptions.FetchSubscription(ctx, user.ID)
	if err != nil {
		log.ErrorContext(ctx, "failed to fetch subscription", logger.Error(err))
		// An open refund decides the outcome without the subscription.
		if d, done := c.engine.Precheck(in); done && d.Code == CodeRefundAlreadyExists {
			return c.done(ctx, log, d)
		}
		return c.done(ctx, log, ineligible(CodeSubscriptionUndetermined,
			"Unable to load the subscription", Details{CurrentPlan: in.CurrentPlan()}))
	}
	in.Subscription = record

	pre, done := c.engine.Precheck(in)
	if done {
		return c.done(ctx, log, pre)
	}

	snap, err := c.usage.FetchUsageSnapshot(ctx, user.ID, pre.Details.PurchaseDate)
	if err != nil {
		log.ErrorContext(ctx, "failed to aggregate usage", logger.Error(err))
	} else {
		in.Usage = &snap
	}

	in.Path = plan.PathUnknown
	if in.Usage != nil {
		in.Path = c.resolver.ResolveFor(ctx, user.ID, record.CreatedAt, c.audit).Path
	}

	return c.done(ctx, log, c.engine.Evaluate(in))
}

func (c *Checker) done(ctx context.Context, log *slog.Logger, d Decision) Decision {
	log.InfoContext(ctx, "refund eligibility evaluated",
		slog.Bool("eligible", d.Eligible),
		logger.Code(string(d.Code)),
		slog.Bool("admin_review", d.AdminReviewRecommended),
	)
	return d
}
