package plan

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Unlimited marks a quota without an upper bound (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// Plan describes a single tier and its resource quotas.
type Plan struct {
	Tier           Tier
	Name           string
	StorageQuotaGB decimal.Decimal
	GalleryLimit   int64 // Unlimited for no limit
	// GatewayPriceID is the payment provider's price identifier; empty for free.
	GatewayPriceID string
}

// Thresholds is a usage ceiling used to decide whether a refund is still possible.
// Comparisons are strict: usage equal to a limit is within it.
type Thresholds struct {
	Label          string // human readable baseline name, e.g. "Starter"
	StorageGB      decimal.Decimal
	Resources      int64
	CheckResources bool
}

// StorageExceeded reports whether gb is strictly above the storage ceiling.
func (t Thresholds) StorageExceeded(gb decimal.Decimal) bool {
	return gb.GreaterThan(t.StorageGB)
}

// ResourcesExceeded reports whether count is strictly above the resource ceiling.
// Always false when the baseline does not limit resources.
func (t Thresholds) ResourcesExceeded(count int64) bool {
	return t.CheckResources && count > t.Resources
}

// Exceeded reports whether either ceiling is crossed.
func (t Thresholds) Exceeded(gb decimal.Decimal, count int64) bool {
	return t.StorageExceeded(gb) || t.ResourcesExceeded(count)
}

// String renders the limits the way they are cited to customers, e.g. "5 GB, 5 galleries".
func (t Thresholds) String() string {
	if !t.CheckResources {
		return fmt.Sprintf("%s GB", t.StorageGB.String())
	}
	return fmt.Sprintf("%s GB, %d galleries", t.StorageGB.String(), t.Resources)
}

// Baselines are the refund ceilings tied to a historical tier.
type Baselines struct {
	Starter Thresholds
	Plus    Thresholds
}

// DefaultBaselines returns the production refund ceilings.
func DefaultBaselines() Baselines {
	return Baselines{
		Starter: Thresholds{
			Label:          "Starter",
			StorageGB:      decimal.NewFromInt(5),
			Resources:      5,
			CheckResources: true,
		},
		Plus: Thresholds{
			Label:     "Plus",
			StorageGB: decimal.NewFromInt(50),
		},
	}
}

// DefaultPlans returns the canonical five-tier table.
func DefaultPlans() []Plan {
	return []Plan{
		{Tier: TierFree, Name: "Free", StorageQuotaGB: decimal.NewFromInt(1), GalleryLimit: 3},
		{Tier: TierStarter, Name: "Starter", StorageQuotaGB: decimal.NewFromInt(10), GalleryLimit: 10, GatewayPriceID: "pri_starter_monthly"},
		{Tier: TierPlus, Name: "Plus", StorageQuotaGB: decimal.NewFromInt(100), GalleryLimit: 50, GatewayPriceID: "pri_plus_monthly"},
		{Tier: TierPro, Name: "Pro", StorageQuotaGB: decimal.NewFromInt(500), GalleryLimit: Unlimited, GatewayPriceID: "pri_pro_monthly"},
		{Tier: TierUltimate, Name: "Ultimate", StorageQuotaGB: decimal.NewFromInt(2000), GalleryLimit: Unlimited, GatewayPriceID: "pri_ultimate_monthly"},
	}
}

// Comparison describes how quotas change when moving between two tiers.
type Comparison struct {
	From, To        Tier
	StorageDeltaGB  decimal.Decimal
	GalleryLimitOld int64
	GalleryLimitNew int64
}

// LosesStorage reports whether the target tier has a smaller storage quota.
func (c Comparison) LosesStorage() bool {
	return c.StorageDeltaGB.IsNegative()
}

// LosesGalleries reports whether the target tier has a tighter gallery limit.
// Moving from unlimited to any finite value counts as a loss.
func (c Comparison) LosesGalleries() bool {
	if c.GalleryLimitNew == Unlimited {
		return false
	}
	if c.GalleryLimitOld == Unlimited {
		return true
	}
	return c.GalleryLimitNew < c.GalleryLimitOld
}

// Compare returns the quota differences between two plans.
func Compare(current, target Plan) Comparison {
	return Comparison{
		From:            current.Tier,
		To:              target.Tier,
		StorageDeltaGB:  target.StorageQuotaGB.Sub(current.StorageQuotaGB),
		GalleryLimitOld: current.GalleryLimit,
		GalleryLimitNew: target.GalleryLimit,
	}
}
