package models

import "time"

// LeaderboardSnapshot is one row of a periodic leaderboard capture, upserted
// by user and calendar date. Snapshots feed history and the stats dashboard;
// live leaderboard reads always query donor_profiles directly.
type LeaderboardSnapshot struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string    `gorm:"uniqueIndex:uk_user_date;size:64;not null" json:"user_id"`
	SnapshotDate string    `gorm:"uniqueIndex:uk_user_date;size:10;not null" json:"snapshot_date"`
	TotalCredits int64     `gorm:"not null" json:"total_credits"`
	Rank         int       `gorm:"column:rank;not null" json:"rank"`
	ComputedAt   time.Time `gorm:"not null" json:"computed_at"`
}

func (LeaderboardSnapshot) TableName() string {
	return "leaderboard_snapshots"
}
