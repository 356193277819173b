package service

import (
	"context"
	"time"

	"github.com/avighnad/HamaraPrayas/internal/models"
)

// Store interfaces consumed by the services. internal/repository provides
// the gorm-backed implementations; tests substitute in-memory fakes.

type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.DonorProfile, error)
	GetOrCreate(ctx context.Context, userID string) (*models.DonorProfile, error)
	ApplyEvent(ctx context.Context, profile *models.DonorProfile, txn *models.CreditTransaction, donation *models.DonationRecord, badges []models.BadgeAward) error
	ListByCredits(ctx context.Context, offset, limit int) ([]models.DonorProfile, error)
	ListPaginated(ctx context.Context, offset, limit int) ([]models.DonorProfile, error)
	Count(ctx context.Context) (int64, error)
	CountAhead(ctx context.Context, totalCredits int64, createdAt time.Time, userID string) (int64, error)
}

type LedgerStore interface {
	ExistsByEventKey(ctx context.Context, eventKey string) (bool, error)
	GetByUser(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
	SumByUser(ctx context.Context, userID string) (int64, error)
}

type DonationStore interface {
	GetByUser(ctx context.Context, userID string, limit int) ([]models.DonationRecord, error)
}

type BadgeStore interface {
	GetByUser(ctx context.Context, userID string) ([]models.BadgeAward, error)
}

type SnapshotStore interface {
	Upsert(ctx context.Context, snap *models.LeaderboardSnapshot) error
}
