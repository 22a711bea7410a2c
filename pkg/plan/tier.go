package plan

import "strings"

// Tier identifies a subscription level.
type Tier string

const (
	TierFree     Tier = "free"
	TierStarter  Tier = "starter"
	TierPlus     Tier = "plus"
	TierPro      Tier = "pro"
	TierUltimate Tier = "ultimate"
)

// order is the canonical ascending tier order; the index is the tier level.
var order = [...]Tier{TierFree, TierStarter, TierPlus, TierPro, TierUltimate}

// ParseTier converts a canonical tier name. Aliases are not accepted here,
// use NormalizeAlias for data coming from legacy sources.
func ParseTier(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := canonicalLevel(t); ok {
		return t, true
	}
	return "", false
}

func (t Tier) String() string {
	return string(t)
}

// IsPaid reports whether the tier is anything above free.
func (t Tier) IsPaid() bool {
	lvl, ok := canonicalLevel(t)
	return ok && lvl > 0
}

func canonicalLevel(t Tier) (int, bool) {
	for i, o := range order {
		if o == t {
			return i, true
		}
	}
	return 0, false
}

// Path is the historically inferred upgrade route that produced the current paid plan.
type Path string

const (
	PathStarterToPlus Path = "starter_to_plus"
	PathStarterToPro  Path = "starter_to_pro"
	PathPlusToPro     Path = "plus_to_pro"
	PathUnknown       Path = "unknown"
)

func (p Path) String() string {
	return string(p)
}
