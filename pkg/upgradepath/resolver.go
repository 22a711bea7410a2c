package upgradepath

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/gallerybilling/pkg/logger"
	"github.com/dmitrymomot/gallerybilling/pkg/plan"
	"github.com/dmitrymomot/gallerybilling/pkg/subscription"
)

// Resolution explains how a path was chosen.
type Resolution struct {
	Path plan.Path `json:"path"`
	// Entry is the upgrade record the path was derived from, nil when none matched.
	Entry *subscription.AuditEntry `json:"entry,omitempty"`
	// Unfiltered is set when timestamps could not be parsed and the whole history was scanned.
	Unfiltered bool `json:"unfiltered,omitempty"`
}

// Resolver infers upgrade paths from audit history. It is safe for concurrent use.
type Resolver struct {
	logger *slog.Logger
	limit  int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used to report degraded resolutions.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithHistoryLimit bounds how many audit entries ResolveFor requests.
func WithHistoryLimit(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.limit = n
		}
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		logger: slog.Default(),
		limit:  subscription.DefaultAuditHistoryLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveFor fetches the user's bounded audit history and resolves the path.
// A fetch failure degrades to plan.PathUnknown.
func (r *Resolver) ResolveFor(ctx context.Context, userID uuid.UUID, createdAt subscription.Timestamp, src subscription.AuditFetcher) Resolution {
	if src == nil {
		return Resolution{Path: plan.PathUnknown}
	}
	history, err := src.FetchAuditHistory(ctx, userID, r.limit)
	if err != nil {
		r.logger.WarnContext(ctx, "audit history unavailable, upgrade path unknown",
			logger.UserID(userID),
			logger.Error(err),
		)
		return Resolution{Path: plan.PathUnknown}
	}
	return r.Explain(ctx, userID, createdAt, history)
}

// Resolve returns only the path of Explain.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID, createdAt subscription.Timestamp, history []subscription.AuditEntry) plan.Path {
	return r.Explain(ctx, userID, createdAt, history).Path
}

// Explain resolves the path and reports which entry decided it.
// history is expected newest first, as audit stores return it.
func (r *Resolver) Explain(ctx context.Context, userID uuid.UUID, createdAt subscription.Timestamp, history []subscription.AuditEntry) Resolution {
	log := r.logger.With(logger.UserID(userID))

	window, ordered := filterSince(createdAt, history)
	res := Resolution{Unfiltered: !ordered}
	if !ordered {
		log.WarnContext(ctx, "unparseable timestamp in audit history, scanning unfiltered history",
			slog.String("created_at", string(createdAt)),
			slog.Int("entries", len(history)),
		)
	}

	var upgrades []subscription.AuditEntry
	for _, e := range window {
		if e.IsUpgrade() {
			upgrades = append(upgrades, e)
		}
	}
	if len(upgrades) == 0 {
		log.DebugContext(ctx, "no upgrade records since subscription start")
		res.Path = plan.PathUnknown
		return res
	}

	// window is oldest first when ordered, otherwise it kept the store's newest-first order.
	first := upgrades[0]
	if !ordered {
		first = upgrades[len(upgrades)-1]
	}
	res.Entry = &first
	res.Path = classify(first, priorTo(first, window, ordered))

	if res.Path == plan.PathUnknown {
		log.WarnContext(ctx, "upgrade record does not match a known route",
			logger.Action(first.Action),
			slog.String("from_plan", first.FromPlan),
			slog.String("to_plan", first.ToPlan),
		)
	} else {
		log.DebugContext(ctx, "upgrade path resolved", logger.UpgradePath(res.Path.String()))
	}
	return res
}

type stamped struct {
	entry subscription.AuditEntry
	at    time.Time
}

// filterSince keeps entries at or after createdAt, sorted oldest first.
// If any timestamp cannot be parsed it returns history unchanged and ordered=false.
func filterSince(createdAt subscription.Timestamp, history []subscription.AuditEntry) (window []subscription.AuditEntry, ordered bool) {
	since, err := createdAt.Time()
	if err != nil {
		return history, false
	}

	kept := make([]stamped, 0, len(history))
	for _, e := range history {
		at, err := subscription.ParseTimestamp(e.Timestamp)
		if err != nil {
			return history, false
		}
		if !at.Before(since) {
			kept = append(kept, stamped{entry: e, at: at})
		}
	}

	slices.SortStableFunc(kept, func(a, b stamped) int {
		return a.at.Compare(b.at)
	})

	window = make([]subscription.AuditEntry, len(kept))
	for i, k := range kept {
		window[i] = k.entry
	}
	return window, true
}

var routes = map[[2]plan.Tier]plan.Path{
	{plan.TierStarter, plan.TierPlus}: plan.PathStarterToPlus,
	{plan.TierStarter, plan.TierPro}:  plan.PathStarterToPro,
	{plan.TierPlus, plan.TierPro}:     plan.PathPlusToPro,
}

func classify(e subscription.AuditEntry, prior []subscription.AuditEntry) plan.Path {
	to, ok := plan.NormalizeAlias(e.ToPlan)
	if !ok {
		return plan.PathUnknown
	}
	if from, ok := plan.NormalizeFrom(e.FromPlan); ok {
		if p, ok := routes[[2]plan.Tier{from, to}]; ok {
			return p
		}
	}

	switch to {
	case plan.TierPro:
		if reachedPlus(prior) {
			return plan.PathPlusToPro
		}
		return plan.PathStarterToPro
	case plan.TierPlus:
		return plan.PathStarterToPlus
	}
	return plan.PathUnknown
}

// priorTo returns the window entries recorded before e.
// Newest-first windows keep older entries after e.
func priorTo(e subscription.AuditEntry, window []subscription.AuditEntry, ordered bool) []subscription.AuditEntry {
	i := slices.Index(window, e)
	if i < 0 {
		return nil
	}
	if ordered {
		return window[:i]
	}
	return window[i+1:]
}

// reachedPlus reports whether any of the entries moved the user to Plus.
func reachedPlus(prior []subscription.AuditEntry) bool {
	return slices.ContainsFunc(prior, func(e subscription.AuditEntry) bool {
		t, ok := plan.NormalizeAlias(e.ToPlan)
		return ok && t == plan.TierPlus
	})
}
