package repository

import (
	"context"
	"errors"
	"time"

	"github.com/avighnad/HamaraPrayas/internal/models"

	"gorm.io/gorm"
)

// ErrVersionConflict is returned when a versioned profile update matched no
// row, meaning another writer committed first. The event is safe to resubmit
// under the same event key.
var ErrVersionConflict = errors.New("profile version conflict")

// ErrDuplicateEventKey is returned when the unique ledger index rejects an
// event key that was already committed.
var ErrDuplicateEventKey = errors.New("event key already recorded")

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID returns the profile for a user, or nil when none exists yet.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.DonorProfile, error) {
	var profile models.DonorProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &profile, err
}

// GetOrCreate loads a user's profile, creating the default row on first
// access.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID string) (*models.DonorProfile, error) {
	profile := &models.DonorProfile{
		UserID:        userID,
		SchemaVersion: models.CurrentSchemaVersion,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("user_id = ?", userID).FirstOrCreate(profile).Error
	})
	return profile, err
}

// ApplyEvent persists the full outcome of one rewards event as a single
// transaction: the profile row, the ledger entry, the optional donation
// record and any badge awards commit together or not at all. Existing
// profiles update under an optimistic version check; new profiles insert
// with version zero.
func (r *ProfileRepository) ApplyEvent(ctx context.Context, profile *models.DonorProfile, txn *models.CreditTransaction, donation *models.DonationRecord, badges []models.BadgeAward) error {
	isNew := profile.ID == 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isNew {
			if err := tx.Create(profile).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// Another writer created the profile concurrently.
					return ErrVersionConflict
				}
				return err
			}
		} else {
			result := tx.Model(&models.DonorProfile{}).
				Where("id = ? AND version = ?", profile.ID, profile.Version).
				Updates(map[string]interface{}{
					"total_credits":       profile.TotalCredits,
					"lifetime_donations":  profile.LifetimeDonations,
					"current_streak":      profile.CurrentStreak,
					"longest_streak":      profile.LongestStreak,
					"help_response_count": profile.HelpResponseCount,
					"referral_count":      profile.ReferralCount,
					"last_donation_at":    profile.LastDonationAt,
					"schema_version":      profile.SchemaVersion,
					"version":             profile.Version + 1,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrVersionConflict
			}
		}

		if donation != nil {
			if err := tx.Create(donation).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(txn).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEventKey
			}
			return err
		}

		if len(badges) > 0 {
			if err := tx.Create(&badges).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if !isNew {
		profile.Version++
	}
	return nil
}

// ListByCredits returns profiles in leaderboard order: credits descending,
// then earliest account, then user id. The order is total, so equal-credit
// users always appear in the same sequence.
func (r *ProfileRepository) ListByCredits(ctx context.Context, offset, limit int) ([]models.DonorProfile, error) {
	var profiles []models.DonorProfile
	err := r.db.WithContext(ctx).
		Order("total_credits DESC, created_at ASC, user_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

// ListPaginated returns profiles in stable id order for batch jobs.
func (r *ProfileRepository) ListPaginated(ctx context.Context, offset, limit int) ([]models.DonorProfile, error) {
	var profiles []models.DonorProfile
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

func (r *ProfileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DonorProfile{}).
		Count(&count).Error
	return count, err
}

// CountAhead returns how many profiles sort strictly ahead of the given
// profile in leaderboard order. A profile's rank is CountAhead + 1.
func (r *ProfileRepository) CountAhead(ctx context.Context, totalCredits int64, createdAt time.Time, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DonorProfile{}).
		Where("total_credits > ? OR (total_credits = ? AND (created_at < ? OR (created_at = ? AND user_id < ?)))",
			totalCredits, totalCredits, createdAt, createdAt, userID).
		Count(&count).Error
	return count, err
}

// SumCredits returns the credit total across all profiles.
func (r *ProfileRepository) SumCredits(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.DonorProfile{}).
		Select("COALESCE(SUM(total_credits), 0)").
		Scan(&total).Error
	return total, err
}
