package repository

import (
	"context"

	"github.com/avighnad/HamaraPrayas/internal/models"

	"gorm.io/gorm"
)

type BadgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// GetByUser returns a user's badge awards in earn order.
func (r *BadgeRepository) GetByUser(ctx context.Context, userID string) ([]models.BadgeAward, error) {
	var awards []models.BadgeAward
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&awards).Error
	return awards, err
}

func (r *BadgeRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BadgeAward{}).
		Count(&count).Error
	return count, err
}
