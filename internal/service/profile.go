package service

import (
	"context"
	"time"

	"github.com/avighnad/HamaraPrayas/internal/models"
	"github.com/avighnad/HamaraPrayas/internal/rewards"
	"github.com/avighnad/HamaraPrayas/pkg/errors"
	"github.com/avighnad/HamaraPrayas/pkg/logger"
)

// ProfileService serves the read side: profile views with derived fields,
// ledger history and donation history.
type ProfileService struct {
	profileRepo  ProfileStore
	ledgerRepo   LedgerStore
	donationRepo DonationStore
	badgeRepo    BadgeStore
}

func NewProfileService(profileRepo ProfileStore, ledgerRepo LedgerStore, donationRepo DonationStore, badgeRepo BadgeStore) *ProfileService {
	return &ProfileService{
		profileRepo:  profileRepo,
		ledgerRepo:   ledgerRepo,
		donationRepo: donationRepo,
		badgeRepo:    badgeRepo,
	}
}

type BadgeView struct {
	ID       string    `json:"id"`
	EarnedAt time.Time `json:"earnedAt"`
}

// ProfileView is the display shape of a donor profile. PriorityTier,
// LivesSaved and EligibleAt are derived on every read and never stored.
type ProfileView struct {
	UserID            string       `json:"userId"`
	TotalCredits      int64        `json:"totalCredits"`
	PriorityTier      rewards.Tier `json:"priorityTier"`
	LifetimeDonations int          `json:"lifetimeDonations"`
	LivesSaved        int          `json:"livesSaved"`
	CurrentStreak     int          `json:"currentStreak"`
	LongestStreak     int          `json:"longestStreak"`
	HelpResponseCount int          `json:"helpResponseCount"`
	ReferralCount     int          `json:"referralCount"`
	LastDonationAt    *time.Time   `json:"lastDonationAt"`
	EligibleAt        *time.Time   `json:"eligibleAt"`
	MemberSince       time.Time    `json:"memberSince"`
	Badges            []BadgeView  `json:"badges"`
}

// GetProfile returns the display view of a user's profile, creating the
// default profile on first access.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*ProfileView, error) {
	if userID == "" {
		return nil, errors.New(errors.ErrInvalidEvent, "userId is required", nil)
	}

	profile, err := s.profileRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.New(errors.ErrProfileLoad, "failed to load profile", err)
	}
	if fixed := normalizeProfile(profile); len(fixed) > 0 {
		logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"fields":  fixed,
		}).Warn("Substituted defaults for malformed profile fields")
	}

	awards, err := s.badgeRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, errors.New(errors.ErrProfileLoad, "failed to load badge awards", err)
	}

	view := &ProfileView{
		UserID:            profile.UserID,
		TotalCredits:      profile.TotalCredits,
		PriorityTier:      rewards.TierFor(profile.TotalCredits),
		LifetimeDonations: profile.LifetimeDonations,
		LivesSaved:        profile.LivesSaved(),
		CurrentStreak:     profile.CurrentStreak,
		LongestStreak:     profile.LongestStreak,
		HelpResponseCount: profile.HelpResponseCount,
		ReferralCount:     profile.ReferralCount,
		LastDonationAt:    profile.LastDonationAt,
		MemberSince:       profile.CreatedAt,
		Badges:            make([]BadgeView, 0, len(awards)),
	}
	if profile.LastDonationAt != nil {
		eligible := rewards.NextEligibleAt(*profile.LastDonationAt)
		view.EligibleAt = &eligible
	}
	for _, award := range awards {
		view.Badges = append(view.Badges, BadgeView{ID: award.BadgeID, EarnedAt: award.EarnedAt})
	}

	return view, nil
}

// Transactions returns the user's ledger entries, newest first.
func (s *ProfileService) Transactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	txns, err := s.ledgerRepo.GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, errors.New(errors.ErrProfileLoad, "failed to load transactions", err)
	}
	return txns, nil
}

// Donations returns the user's donation records, newest first.
func (s *ProfileService) Donations(ctx context.Context, userID string, limit int) ([]models.DonationRecord, error) {
	donations, err := s.donationRepo.GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, errors.New(errors.ErrProfileLoad, "failed to load donations", err)
	}
	return donations, nil
}

// normalizeProfile substitutes documented defaults for malformed or legacy
// profile fields in place and returns the names of the substituted fields.
// Reads never fail on a decodable row.
func normalizeProfile(p *models.DonorProfile) []string {
	var fixed []string

	if p.TotalCredits < 0 {
		p.TotalCredits = 0
		fixed = append(fixed, "total_credits")
	}
	if p.LifetimeDonations < 0 {
		p.LifetimeDonations = 0
		fixed = append(fixed, "lifetime_donations")
	}
	if p.HelpResponseCount < 0 {
		p.HelpResponseCount = 0
		fixed = append(fixed, "help_response_count")
	}
	if p.ReferralCount < 0 {
		p.ReferralCount = 0
		fixed = append(fixed, "referral_count")
	}
	if p.CurrentStreak < 0 {
		p.CurrentStreak = 0
		fixed = append(fixed, "current_streak")
	}
	if p.LongestStreak < p.CurrentStreak {
		p.LongestStreak = p.CurrentStreak
		fixed = append(fixed, "longest_streak")
	}
	if p.SchemaVersion < models.CurrentSchemaVersion {
		p.SchemaVersion = models.CurrentSchemaVersion
		fixed = append(fixed, "schema_version")
	}

	return fixed
}
