package plan

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Catalog is the immutable table of tiers. Construct it once and share it.
type Catalog struct {
	plans     map[Tier]Plan
	baselines Baselines
}

// NewCatalog validates the plan table and returns a catalog.
// Every canonical tier must be present exactly once.
func NewCatalog(plans []Plan, baselines Baselines) (*Catalog, error) {
	byTier := make(map[Tier]Plan, len(order))
	for _, p := range plans {
		if _, ok := canonicalLevel(p.Tier); !ok {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("%w: %q", ErrUnknownTier, p.Tier))
		}
		if _, dup := byTier[p.Tier]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("%w: %q", ErrDuplicateTier, p.Tier))
		}
		if p.StorageQuotaGB.IsNegative() {
			return nil, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative storage quota: %s", p.Tier, p.StorageQuotaGB))
		}
		if p.GalleryLimit < Unlimited {
			return nil, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has invalid gallery limit: %d", p.Tier, p.GalleryLimit))
		}
		byTier[p.Tier] = p
	}

	for _, t := range order {
		if _, ok := byTier[t]; !ok {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("%w: %q", ErrMissingTier, t))
		}
	}

	if baselines.Starter.StorageGB.IsNegative() || baselines.Plus.StorageGB.IsNegative() || baselines.Starter.Resources < 0 {
		return nil, errors.Join(ErrInvalidPlanConfiguration, errors.New("refund baselines must not be negative"))
	}

	return &Catalog{plans: byTier, baselines: baselines}, nil
}

// Load builds a catalog from a Source.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plan: source is required")
	}
	def, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return NewCatalog(def.Plans, def.Baselines)
}

// MustDefault returns the catalog of DefaultPlans and DefaultBaselines.
func MustDefault() *Catalog {
	c, err := NewCatalog(DefaultPlans(), DefaultBaselines())
	if err != nil {
		panic(fmt.Sprintf("plan: default catalog is invalid: %v", err))
	}
	return c
}

// LevelOf returns the position of t in the tier order.
func (c *Catalog) LevelOf(t Tier) (int, bool) {
	if !c.Exists(t) {
		return 0, false
	}
	return canonicalLevel(t)
}

// Exists reports whether t is a tier of this catalog.
func (c *Catalog) Exists(t Tier) bool {
	_, ok := c.plans[t]
	return ok
}

// Plan returns the definition for t.
func (c *Catalog) Plan(t Tier) (Plan, bool) {
	p, ok := c.plans[t]
	return p, ok
}

// Tiers lists all tiers in ascending order.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, 0, len(order))
	for _, t := range order {
		if c.Exists(t) {
			out = append(out, t)
		}
	}
	return out
}

// Baselines returns the refund ceilings.
func (c *Catalog) Baselines() Baselines {
	return c.baselines
}

// ThresholdsFor picks the refund ceiling for an upgrade path.
// Unknown paths get the starter baseline; the caller layers the plus ceiling on top.
func (c *Catalog) ThresholdsFor(p Path) Thresholds {
	if p == PathPlusToPro {
		return c.baselines.Plus
	}
	return c.baselines.Starter
}

// Compare returns the quota change between two catalog tiers.
func (c *Catalog) Compare(from, to Tier) (Comparison, bool) {
	a, ok := c.plans[from]
	if !ok {
		return Comparison{}, false
	}
	b, ok := c.plans[to]
	if !ok {
		return Comparison{}, false
	}
	return Compare(a, b), true
}

// DisplayName returns the configured plan name or a title-cased tier name.
func (c *Catalog) DisplayName(t Tier) string {
	if p, ok := c.plans[t]; ok && p.Name != "" {
		return p.Name
	}
	// Casers keep state, so one is created per call.
	return cases.Title(language.English).String(string(t))
}
