// Package rewards implements the donation rewards rule engine: pure
// state-transition functions that take the current donor profile and one
// event and return the next profile state, the credit award and any newly
// earned badges. The engine performs no I/O and never reads the clock, so
// the same inputs always produce the same outcome.
package rewards

import (
	"fmt"
	"strings"
	"time"

	"github.com/avighnad/HamaraPrayas/internal/models"
)

// Credit amounts are product rules fixed at compile time so ledgers stay
// comparable across deployments.
const (
	BaseDonationCredits int64 = 100
	FirstDonationBonus  int64 = 50
	UrgentResponseBonus int64 = 50
	StreakBonusStep     int64 = 25
	HelpResponseCredits int64 = 10
	ReferralCredits     int64 = 30
)

// Streak window in days. A donation 56-90 days after the previous one
// continues the streak, later than 90 resets it to 1, earlier than 56
// leaves it untouched.
const (
	StreakWindowMinDays = 56
	StreakWindowMaxDays = 90
)

// DonationEvent carries everything submitted with one donation. Fields the
// rule engine ignores (location, units) still travel here so the caller can
// build the donation record from a single shape.
type DonationEvent struct {
	BloodType         models.BloodType
	Location          string
	FacilityName      string
	UnitsDonated      int
	WasUrgentResponse bool
	HelpRequestID     string
}

type HelpResponseEvent struct {
	HelpRequestID string
}

type ReferralEvent struct {
	ReferredName string
}

// Outcome is the result of applying one event to a profile. Profile is the
// next state; the input profile is never mutated.
type Outcome struct {
	Profile     models.DonorProfile
	Credits     int64
	Breakdown   map[string]int64
	Description string
	NewBadges   []string
}

// ApplyDonation applies one recorded donation: base credits plus first-time,
// urgent-response and streak bonuses, counter updates and badge evaluation.
// The streak bonus scales with the new streak length. earnedBadges is the
// set already held by the user; badges in it are never reported again.
func ApplyDonation(profile models.DonorProfile, earnedBadges []string, event DonationEvent, now time.Time) Outcome {
	credits := BaseDonationCredits
	breakdown := map[string]int64{"base": BaseDonationCredits}
	var bonuses []string

	if profile.LifetimeDonations == 0 {
		credits += FirstDonationBonus
		breakdown["first_donation"] = FirstDonationBonus
		bonuses = append(bonuses, "first donation bonus")
	}
	if event.WasUrgentResponse {
		credits += UrgentResponseBonus
		breakdown["urgent_response"] = UrgentResponseBonus
		bonuses = append(bonuses, "urgent response bonus")
	}

	if profile.LastDonationAt == nil {
		profile.CurrentStreak = 1
	} else {
		switch days := daysBetween(*profile.LastDonationAt, now); {
		case days > StreakWindowMaxDays:
			profile.CurrentStreak = 1
		case days >= StreakWindowMinDays:
			profile.CurrentStreak++
			bonus := StreakBonusStep * int64(profile.CurrentStreak)
			credits += bonus
			breakdown["streak"] = bonus
			bonuses = append(bonuses, fmt.Sprintf("streak bonus x%d", profile.CurrentStreak))
		}
	}
	if profile.CurrentStreak > profile.LongestStreak {
		profile.LongestStreak = profile.CurrentStreak
	}

	profile.LifetimeDonations++
	profile.TotalCredits += credits
	last := now
	profile.LastDonationAt = &last

	desc := "Blood donation"
	if event.FacilityName != "" {
		desc += " at " + event.FacilityName
	}
	if len(bonuses) > 0 {
		desc += " (" + strings.Join(bonuses, ", ") + ")"
	}

	return Outcome{
		Profile:     profile,
		Credits:     credits,
		Breakdown:   breakdown,
		Description: desc,
		NewBadges:   evaluateBadges(profile, event.WasUrgentResponse, event.BloodType, earnedBadges),
	}
}

// ApplyHelpResponse awards the flat credit for answering a community help
// request and re-evaluates badges.
func ApplyHelpResponse(profile models.DonorProfile, earnedBadges []string, event HelpResponseEvent) Outcome {
	profile.HelpResponseCount++
	profile.TotalCredits += HelpResponseCredits

	desc := "Community help response"
	if event.HelpRequestID != "" {
		desc += " for request " + event.HelpRequestID
	}

	return Outcome{
		Profile:     profile,
		Credits:     HelpResponseCredits,
		Breakdown:   map[string]int64{"base": HelpResponseCredits},
		Description: desc,
		NewBadges:   evaluateBadges(profile, false, "", earnedBadges),
	}
}

// ApplyReferral awards the flat credit for a referral that became a
// registered donor.
func ApplyReferral(profile models.DonorProfile, earnedBadges []string, event ReferralEvent) Outcome {
	profile.ReferralCount++
	profile.TotalCredits += ReferralCredits

	return Outcome{
		Profile:     profile,
		Credits:     ReferralCredits,
		Breakdown:   map[string]int64{"base": ReferralCredits},
		Description: fmt.Sprintf("Referral bonus for inviting %s", event.ReferredName),
		NewBadges:   evaluateBadges(profile, false, "", earnedBadges),
	}
}

// NextEligibleAt returns when a donor becomes eligible to donate again for
// display purposes. Eligibility is advisory only: recording an earlier
// donation is never blocked.
func NextEligibleAt(lastDonation time.Time) time.Time {
	return lastDonation.AddDate(0, 0, StreakWindowMinDays)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
