package rewards

// Tier is the coarse priority ranking derived from accumulated credits. It
// is recomputed on every read and never persisted, so a threshold change
// takes effect everywhere at once.
type Tier string

const (
	TierStandard Tier = "Standard"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// Tier thresholds in credits. Hitting a threshold exactly qualifies for the
// higher tier.
const (
	SilverMinCredits   int64 = 200
	GoldMinCredits     int64 = 500
	PlatinumMinCredits int64 = 1000
)

func TierFor(totalCredits int64) Tier {
	switch {
	case totalCredits >= PlatinumMinCredits:
		return TierPlatinum
	case totalCredits >= GoldMinCredits:
		return TierGold
	case totalCredits >= SilverMinCredits:
		return TierSilver
	default:
		return TierStandard
	}
}
