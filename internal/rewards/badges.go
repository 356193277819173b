package rewards

import "github.com/avighnad/HamaraPrayas/internal/models"

// Badge identifiers. A badge is permanent once earned. Badges that depend on
// data outside the ledger (launch cohorts, monthly rankings) are granted by
// other systems and have no rule here.
const (
	BadgeFirstDonation       = "first-donation"
	BadgeFiveDonations       = "five-donations"
	BadgeTenDonations        = "ten-donations"
	BadgeTwentyFiveDonations = "twentyfive-donations"
	BadgeFiftyDonations      = "fifty-donations"
	BadgeHundredDonations    = "hundred-donations"
	BadgeLifeSaver           = "life-saver"
	BadgeStreakStarter       = "streak-starter"
	BadgeStreakMaster        = "streak-master"
	BadgeCommunityHero       = "community-hero"
	BadgeRareHero            = "rare-hero"
)

// rareBloodTypes qualify for the rare-hero badge.
var rareBloodTypes = map[models.BloodType]bool{
	models.BloodABNegative: true,
	models.BloodBNegative:  true,
	models.BloodONegative:  true,
	models.BloodANegative:  true,
}

type badgeRule struct {
	id        string
	qualifies func(p models.DonorProfile, urgent bool, blood models.BloodType) bool
}

// badgeRules are independent predicates over non-decreasing counters, so
// evaluation order never changes which badges a profile ends up with. The
// table order fixes the order newly earned badges are reported in.
var badgeRules = []badgeRule{
	{BadgeFirstDonation, func(p models.DonorProfile, _ bool, _ models.BloodType) bool { return p.LifetimeDonations >= 1 }},
	{BadgeFiveDonations, func(p models.DonorProfile, _ bool, _ models.BloodType) bool { return p.LifetimeDonations >= 5 }},
	{BadgeTenDonations, func(p models.DonorProfile, _ bool, _ models.BloodType) bool { return p.LifetimeDonations >= 10 }},
	{BadgeTwentyFiveDonations, func(p models.DonorProfile, _ bool, _ models.BloodType) bool { return p.LifetimeDonations >= 25 }},
	{BadgeFiftyDonations, func(p models.DonorProfile, _ bool, _ models.BloodType) bool { return p.LifetimeDonations >= 50 }},
	{BadgeHundredDonations, func(p models.DonorProfile, _ bool, _ models.BloodType) bool { return p.LifetimeDonations >= 100 }},
	{BadgeLifeSaver, func(_ models.DonorProfile, urgent bool, _ models.BloodType) bool { return urgent }},
	{BadgeStreakStarter, func(p models.DonorProfile, _ bool, _ models.BloodType) bool { return p.CurrentStreak >= 2 }},
	{BadgeStreakMaster, func(p models.DonorProfile, _ bool, _ models.BloodType) bool { return p.CurrentStreak >= 5 }},
	{BadgeCommunityHero, func(p models.DonorProfile, _ bool, _ models.BloodType) bool { return p.HelpResponseCount >= 10 }},
	{BadgeRareHero, func(_ models.DonorProfile, _ bool, blood models.BloodType) bool { return rareBloodTypes[blood] }},
}

// evaluateBadges returns the badges newly earned by the updated profile, in
// rule table order, excluding badges already listed in earned.
func evaluateBadges(p models.DonorProfile, urgent bool, blood models.BloodType, earned []string) []string {
	has := make(map[string]bool, len(earned))
	for _, id := range earned {
		has[id] = true
	}

	var newBadges []string
	for _, rule := range badgeRules {
		if has[rule.id] {
			continue
		}
		if rule.qualifies(p, urgent, blood) {
			newBadges = append(newBadges, rule.id)
		}
	}
	return newBadges
}
