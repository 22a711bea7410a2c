// Package plan holds the immutable catalog of gallery subscription tiers.
//
// Tiers form a fixed total order:
//
//	free < starter < plus < pro < ultimate
//
// A Catalog is built once at process start (from DefaultPlans, a YAML file or any
// other Source) and then injected into the lifecycle validator and the refund
// eligibility engine. Nothing in this package mutates a Catalog after construction,
// so a single value can be shared by any number of goroutines.
//
// Besides per-tier quotas the catalog carries the two refund baselines:
//
//   - starter baseline: 5 GB of storage or 5 galleries created since purchase
//   - plus baseline: 50 GB of storage, gallery count is not checked
//
// Usage:
//
//	catalog := plan.MustDefault()
//
//	level, ok := catalog.LevelOf(plan.TierPro) // 3, true
//	limits := catalog.ThresholdsFor(plan.PathPlusToPro)
//
// Legacy plan names found in historical audit records ("professional", "business")
// are translated with NormalizeAlias at the boundary where that data enters the
// system. Everything past that boundary works with canonical Tier values only.
package plan
