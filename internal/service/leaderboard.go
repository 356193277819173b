package service

import (
	"context"
	"time"

	"github.com/avighnad/HamaraPrayas/internal/models"
	"github.com/avighnad/HamaraPrayas/internal/rewards"
	"github.com/avighnad/HamaraPrayas/pkg/errors"
)

const (
	defaultSnapshotSize = 100
	snapshotBatchSize   = 100
)

// LeaderboardService ranks donors by accumulated credits. Live reads query
// donor_profiles directly; ComputeSnapshot persists a periodic capture for
// history.
type LeaderboardService struct {
	profileRepo  ProfileStore
	snapshotRepo SnapshotStore
	snapshotSize int
}

func NewLeaderboardService(profileRepo ProfileStore, snapshotRepo SnapshotStore, snapshotSize int) *LeaderboardService {
	if snapshotSize <= 0 {
		snapshotSize = defaultSnapshotSize
	}
	return &LeaderboardService{
		profileRepo:  profileRepo,
		snapshotRepo: snapshotRepo,
		snapshotSize: snapshotSize,
	}
}

type LeaderboardEntry struct {
	Rank              int          `json:"rank"`
	UserID            string       `json:"userId"`
	TotalCredits      int64        `json:"totalCredits"`
	PriorityTier      rewards.Tier `json:"priorityTier"`
	LifetimeDonations int          `json:"lifetimeDonations"`
}

type LeaderboardPage struct {
	Entries  []LeaderboardEntry `json:"entries"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

type UserRank struct {
	UserID       string  `json:"userId"`
	Rank         int64   `json:"rank"`
	TotalCredits int64   `json:"totalCredits"`
	TotalUsers   int64   `json:"totalUsers"`
	Percentile   float64 `json:"percentile"`
}

// Top returns one leaderboard page. Ranks are positional over the total
// order credits DESC, created_at ASC, user_id ASC, so equal credits resolve
// to the older account.
func (s *LeaderboardService) Top(ctx context.Context, page, pageSize int) (*LeaderboardPage, error) {
	offset := (page - 1) * pageSize
	profiles, err := s.profileRepo.ListByCredits(ctx, offset, pageSize)
	if err != nil {
		return nil, errors.New(errors.ErrLeaderboard, "failed to list profiles", err)
	}
	total, err := s.profileRepo.Count(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrLeaderboard, "failed to count profiles", err)
	}

	entries := make([]LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		entries = append(entries, LeaderboardEntry{
			Rank:              offset + i + 1,
			UserID:            p.UserID,
			TotalCredits:      p.TotalCredits,
			PriorityTier:      rewards.TierFor(p.TotalCredits),
			LifetimeDonations: p.LifetimeDonations,
		})
	}

	return &LeaderboardPage{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// UserRank returns one user's leaderboard position, or nil when the user has
// no profile yet. Percentile is the user's position as a share of all
// donors, so lower is better.
func (s *LeaderboardService) UserRank(ctx context.Context, userID string) (*UserRank, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, errors.New(errors.ErrLeaderboard, "failed to load profile", err)
	}
	if profile == nil {
		return nil, nil
	}

	ahead, err := s.profileRepo.CountAhead(ctx, profile.TotalCredits, profile.CreatedAt, profile.UserID)
	if err != nil {
		return nil, errors.New(errors.ErrLeaderboard, "failed to compute rank", err)
	}
	total, err := s.profileRepo.Count(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrLeaderboard, "failed to count profiles", err)
	}

	rank := ahead + 1
	return &UserRank{
		UserID:       userID,
		Rank:         rank,
		TotalCredits: profile.TotalCredits,
		TotalUsers:   total,
		Percentile:   float64(rank) / float64(total) * 100,
	}, nil
}

// ComputeSnapshot persists the current top-N as one snapshot row per user
// and returns how many rows were written. Rows upsert by user and date, so
// reruns on the same day refresh in place.
func (s *LeaderboardService) ComputeSnapshot(ctx context.Context) (int, error) {
	now := time.Now()
	date := now.Format("2006-01-02")

	written := 0
	for offset := 0; offset < s.snapshotSize; offset += snapshotBatchSize {
		limit := snapshotBatchSize
		if remaining := s.snapshotSize - offset; remaining < limit {
			limit = remaining
		}

		profiles, err := s.profileRepo.ListByCredits(ctx, offset, limit)
		if err != nil {
			return written, errors.New(errors.ErrLeaderboard, "failed to list profiles for snapshot", err)
		}

		for i, p := range profiles {
			snap := &models.LeaderboardSnapshot{
				UserID:       p.UserID,
				SnapshotDate: date,
				TotalCredits: p.TotalCredits,
				Rank:         offset + i + 1,
				ComputedAt:   now,
			}
			if err := s.snapshotRepo.Upsert(ctx, snap); err != nil {
				return written, errors.New(errors.ErrLeaderboard, "failed to upsert snapshot row", err)
			}
			written++
		}

		if len(profiles) < limit {
			break
		}
	}

	return written, nil
}
