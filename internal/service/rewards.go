package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avighnad/HamaraPrayas/internal/models"
	"github.com/avighnad/HamaraPrayas/internal/repository"
	"github.com/avighnad/HamaraPrayas/internal/rewards"
	"github.com/avighnad/HamaraPrayas/pkg/errors"
	"github.com/avighnad/HamaraPrayas/pkg/logger"
)

const lockShards = 32

// keyedMutex serializes mutations per user without one global lock. Shard
// collisions only cost unnecessary waiting, never lost serialization.
type keyedMutex struct {
	shards [lockShards]sync.Mutex
}

func (m *keyedMutex) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	mu := &m.shards[h.Sum32()%lockShards]
	mu.Lock()
	return mu
}

// RewardsService records donation, help response and referral events. Each
// event commits its profile update, ledger entry and badge awards in one
// transaction keyed by a unique event key, so resubmitting the same event
// can never double-award credits.
type RewardsService struct {
	profileRepo ProfileStore
	ledgerRepo  LedgerStore
	badgeRepo   BadgeStore
	locks       keyedMutex
}

func NewRewardsService(profileRepo ProfileStore, ledgerRepo LedgerStore, badgeRepo BadgeStore) *RewardsService {
	return &RewardsService{
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		badgeRepo:   badgeRepo,
	}
}

// RewardResult is handed to the presentation layer after a mutation.
type RewardResult struct {
	Profile        models.DonorProfile
	CreditsAwarded int64
	Description    string
	NewBadges      []string
	Tier           rewards.Tier
}

// RecordDonation applies one donation event to the user's profile.
func (s *RewardsService) RecordDonation(ctx context.Context, userID string, event rewards.DonationEvent, eventKey string) (*RewardResult, error) {
	if err := validateDonationEvent(userID, event, eventKey); err != nil {
		return nil, err
	}

	mu := s.locks.lock(userID)
	defer mu.Unlock()

	if err := s.checkEventKey(ctx, eventKey); err != nil {
		return nil, err
	}
	profile, earned, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	outcome := rewards.ApplyDonation(*profile, earned, event, now)

	donationID := uuid.NewString()
	donation := &models.DonationRecord{
		ID:                donationID,
		UserID:            userID,
		BloodType:         event.BloodType,
		Location:          event.Location,
		FacilityName:      event.FacilityName,
		UnitsDonated:      event.UnitsDonated,
		WasUrgentResponse: event.WasUrgentResponse,
		HelpRequestID:     optionalString(event.HelpRequestID),
		CreditsAwarded:    outcome.Credits,
		DonatedAt:         now,
	}
	txn := buildTransaction(userID, models.CategoryDonation, outcome, eventKey, &donationID)

	if err := s.persist(ctx, &outcome, txn, donation, now); err != nil {
		return nil, err
	}

	s.logOutcome(userID, models.CategoryDonation, outcome)
	return newRewardResult(outcome), nil
}

// RecordHelpResponse awards the flat credit for answering a community help
// request.
func (s *RewardsService) RecordHelpResponse(ctx context.Context, userID string, event rewards.HelpResponseEvent, eventKey string) (*RewardResult, error) {
	if err := validateEventBasics(userID, eventKey); err != nil {
		return nil, err
	}

	mu := s.locks.lock(userID)
	defer mu.Unlock()

	if err := s.checkEventKey(ctx, eventKey); err != nil {
		return nil, err
	}
	profile, earned, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	outcome := rewards.ApplyHelpResponse(*profile, earned, event)
	txn := buildTransaction(userID, models.CategoryHelpResponse, outcome, eventKey, nil)

	if err := s.persist(ctx, &outcome, txn, nil, time.Now()); err != nil {
		return nil, err
	}

	s.logOutcome(userID, models.CategoryHelpResponse, outcome)
	return newRewardResult(outcome), nil
}

// RecordReferral awards the flat credit for a referral that became a
// registered donor.
func (s *RewardsService) RecordReferral(ctx context.Context, userID string, event rewards.ReferralEvent, eventKey string) (*RewardResult, error) {
	if err := validateEventBasics(userID, eventKey); err != nil {
		return nil, err
	}
	if event.ReferredName == "" {
		return nil, errors.New(errors.ErrInvalidEvent, "referredName is required", nil)
	}

	mu := s.locks.lock(userID)
	defer mu.Unlock()

	if err := s.checkEventKey(ctx, eventKey); err != nil {
		return nil, err
	}
	profile, earned, err := s.loadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	outcome := rewards.ApplyReferral(*profile, earned, event)
	txn := buildTransaction(userID, models.CategoryReferral, outcome, eventKey, nil)

	if err := s.persist(ctx, &outcome, txn, nil, time.Now()); err != nil {
		return nil, err
	}

	s.logOutcome(userID, models.CategoryReferral, outcome)
	return newRewardResult(outcome), nil
}

// loadState fetches the profile and earned badge set under the user lock. A
// missing profile comes back as an unsaved default so the first event
// creates it inside the same transaction that records the event.
func (s *RewardsService) loadState(ctx context.Context, userID string) (*models.DonorProfile, []string, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, nil, errors.New(errors.ErrProfileLoad, "failed to load profile", err)
	}
	if profile == nil {
		profile = &models.DonorProfile{
			UserID:        userID,
			SchemaVersion: models.CurrentSchemaVersion,
		}
	} else if fixed := normalizeProfile(profile); len(fixed) > 0 {
		logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"fields":  fixed,
		}).Warn("Substituted defaults for malformed profile fields")
	}

	awards, err := s.badgeRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, nil, errors.New(errors.ErrProfileLoad, "failed to load badge awards", err)
	}
	earned := make([]string, 0, len(awards))
	for _, award := range awards {
		earned = append(earned, award.BadgeID)
	}

	return profile, earned, nil
}

func (s *RewardsService) checkEventKey(ctx context.Context, eventKey string) error {
	exists, err := s.ledgerRepo.ExistsByEventKey(ctx, eventKey)
	if err != nil {
		return errors.New(errors.ErrLedgerApply, "failed to check event key", err)
	}
	if exists {
		return errors.New(errors.ErrDuplicateEvent, "event already recorded", nil)
	}
	return nil
}

func (s *RewardsService) persist(ctx context.Context, outcome *rewards.Outcome, txn *models.CreditTransaction, donation *models.DonationRecord, now time.Time) error {
	badges := make([]models.BadgeAward, 0, len(outcome.NewBadges))
	for _, id := range outcome.NewBadges {
		badges = append(badges, models.BadgeAward{
			UserID:   outcome.Profile.UserID,
			BadgeID:  id,
			EarnedAt: now,
		})
	}

	err := s.profileRepo.ApplyEvent(ctx, &outcome.Profile, txn, donation, badges)
	if err == repository.ErrDuplicateEventKey {
		return errors.New(errors.ErrDuplicateEvent, "event already recorded", err)
	}
	if err != nil {
		return errors.New(errors.ErrLedgerApply, "failed to persist rewards event", err)
	}
	return nil
}

func (s *RewardsService) logOutcome(userID string, category models.CreditCategory, outcome rewards.Outcome) {
	logger.WithFields(map[string]interface{}{
		"user_id":         userID,
		"category":        string(category),
		"credits_awarded": outcome.Credits,
		"total_credits":   outcome.Profile.TotalCredits,
		"new_badges":      outcome.NewBadges,
	}).Info("Rewards event recorded")
}

func buildTransaction(userID string, category models.CreditCategory, outcome rewards.Outcome, eventKey string, donationID *string) *models.CreditTransaction {
	breakdown := make(models.JSONB, len(outcome.Breakdown))
	for part, amount := range outcome.Breakdown {
		breakdown[part] = amount
	}

	return &models.CreditTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Category:    category,
		Amount:      outcome.Credits,
		Description: outcome.Description,
		Breakdown:   breakdown,
		EventKey:    eventKey,
		DonationID:  donationID,
	}
}

func newRewardResult(outcome rewards.Outcome) *RewardResult {
	return &RewardResult{
		Profile:        outcome.Profile,
		CreditsAwarded: outcome.Credits,
		Description:    outcome.Description,
		NewBadges:      outcome.NewBadges,
		Tier:           rewards.TierFor(outcome.Profile.TotalCredits),
	}
}

func validateEventBasics(userID, eventKey string) error {
	if userID == "" {
		return errors.New(errors.ErrInvalidEvent, "userId is required", nil)
	}
	if eventKey == "" {
		return errors.New(errors.ErrInvalidEvent, "eventKey is required", nil)
	}
	return nil
}

func validateDonationEvent(userID string, event rewards.DonationEvent, eventKey string) error {
	if err := validateEventBasics(userID, eventKey); err != nil {
		return err
	}
	if !event.BloodType.Valid() {
		return errors.New(errors.ErrInvalidEvent, fmt.Sprintf("unknown blood type %q", string(event.BloodType)), nil)
	}
	if event.UnitsDonated < 1 {
		return errors.New(errors.ErrInvalidEvent, "unitsDonated must be at least 1", nil)
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
