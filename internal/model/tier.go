package model

// Tier is a discrete polling-cadence class derived from observed production rate.
type Tier string

const (
	TierVeryHigh Tier = "very_high"
	TierHigh     Tier = "high"
	TierMedHigh  Tier = "medium_high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
	TierVeryLow  Tier = "very_low"
)

// TierAll is the selector filter value that matches every tier.
const TierAll Tier = "all"

// Urgency orders tiers from very_low (0) to very_high (5). Unknown tiers sort lowest.
func (t Tier) Urgency() int {
	switch t {
	case TierVeryHigh:
		return 5
	case TierHigh:
		return 4
	case TierMedHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	case TierVeryLow:
		return 0
	}
	return -1
}

// ValidTier reports whether s names a known tier or the "all" filter.
func ValidTier(s string) bool {
	switch Tier(s) {
	case TierVeryHigh, TierHigh, TierMedHigh, TierMedium, TierLow, TierVeryLow, TierAll:
		return true
	}
	return false
}
