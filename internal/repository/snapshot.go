package repository

import (
	"context"
	"errors"
	"time"

	"github.com/avighnad/HamaraPrayas/internal/models"

	"gorm.io/gorm"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert inserts or refreshes the snapshot row for one user and date, so
// rerunning a snapshot on the same day updates in place.
func (r *SnapshotRepository) Upsert(ctx context.Context, snap *models.LeaderboardSnapshot) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO leaderboard_snapshots (user_id, snapshot_date, total_credits, `+"`rank`"+`, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			total_credits = ?,
			`+"`rank`"+` = ?,
			computed_at = ?
	`, snap.UserID, snap.SnapshotDate, snap.TotalCredits, snap.Rank, snap.ComputedAt,
		snap.TotalCredits, snap.Rank, snap.ComputedAt).Error
}

// LastComputedAt returns when any snapshot row was last written, or nil when
// no snapshot has run yet.
func (r *SnapshotRepository) LastComputedAt(ctx context.Context) (*time.Time, error) {
	var snap models.LeaderboardSnapshot
	err := r.db.WithContext(ctx).
		Order("computed_at DESC").
		First(&snap).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap.ComputedAt, nil
}
