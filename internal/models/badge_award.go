package models

import "time"

// BadgeAward marks a permanently earned badge. The composite unique key
// keeps a badge to at most one award per user; the auto-increment id
// preserves earn order.
type BadgeAward struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   string    `gorm:"uniqueIndex:uk_user_badge;size:64;not null" json:"user_id"`
	BadgeID  string    `gorm:"uniqueIndex:uk_user_badge;size:40;not null" json:"badge_id"`
	EarnedAt time.Time `gorm:"not null" json:"earned_at"`
}

func (BadgeAward) TableName() string {
	return "badge_awards"
}
