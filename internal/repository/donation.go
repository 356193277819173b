package repository

import (
	"context"

	"github.com/avighnad/HamaraPrayas/internal/models"

	"gorm.io/gorm"
)

type DonationRepository struct {
	db *gorm.DB
}

func NewDonationRepository(db *gorm.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// GetByUser returns a user's donation records, newest first.
func (r *DonationRepository) GetByUser(ctx context.Context, userID string, limit int) ([]models.DonationRecord, error) {
	var donations []models.DonationRecord
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("donated_at DESC, id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&donations).Error
	return donations, err
}

func (r *DonationRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DonationRecord{}).
		Count(&count).Error
	return count, err
}
