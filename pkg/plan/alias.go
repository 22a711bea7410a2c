package plan

import "strings"

// aliases maps legacy plan names to canonical tiers. The lookup is one-way.
var aliases = map[string]Tier{
	"professional": TierPlus,
	"business":     TierPro,
}

// NormalizeAlias maps a raw plan name (canonical or legacy) to a Tier.
func NormalizeAlias(raw string) (Tier, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := aliases[name]; ok {
		return t, true
	}
	return ParseTier(name)
}

// NormalizeFrom is NormalizeAlias for the "from" side of an upgrade record.
// Anything at or below starter (including an empty or "none" value) counts as starter,
// since every paid route starts there.
func NormalizeFrom(raw string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none", string(TierFree), string(TierStarter):
		return TierStarter, true
	}
	return NormalizeAlias(raw)
}
