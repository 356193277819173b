package repository

import (
	"context"
	"time"

	"github.com/avighnad/HamaraPrayas/internal/models"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// ExistsByEventKey reports whether an event key was already committed to the
// ledger. Checked before any state changes so duplicate submissions leave
// the ledger untouched.
func (r *LedgerRepository) ExistsByEventKey(ctx context.Context, eventKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("event_key = ?", eventKey).
		Count(&count).Error
	return count > 0, err
}

// GetByUser returns a user's ledger entries, newest first.
func (r *LedgerRepository) GetByUser(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	var txns []models.CreditTransaction
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&txns).Error
	return txns, err
}

// SumByUser returns the ledger total for one user.
func (r *LedgerRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *LedgerRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Count(&count).Error
	return count, err
}

// GetDailyCredits returns credits issued per day over the trailing window,
// keyed by date string.
func (r *LedgerRepository) GetDailyCredits(ctx context.Context, days int) (map[string]int64, error) {
	type dailyTotal struct {
		Date  string
		Total int64
	}

	var results []dailyTotal
	startDate := time.Now().AddDate(0, 0, -days+1).Format("2006-01-02")

	err := r.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Select("DATE(created_at) as date, SUM(amount) as total").
		Where("DATE(created_at) >= ?", startDate).
		Group("DATE(created_at)").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int64)
	for _, row := range results {
		totals[row.Date] = row.Total
	}
	return totals, nil
}
