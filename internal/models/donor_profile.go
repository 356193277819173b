package models

import (
	"time"

	"gorm.io/gorm"
)

// CurrentSchemaVersion is stamped onto new profile rows. Rows carrying an
// older version are upgraded with defaults when read.
const CurrentSchemaVersion = 1

// DonorProfile is the per-user rewards aggregate: one row per user, created
// lazily on first access and never deleted in-app. TotalCredits must always
// equal the sum of the user's credit transactions.
type DonorProfile struct {
	ID                uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            string         `gorm:"uniqueIndex:uk_user;size:64;not null" json:"user_id"`
	TotalCredits      int64          `gorm:"not null;default:0;index:idx_total_credits" json:"total_credits"`
	LifetimeDonations int            `gorm:"not null;default:0" json:"lifetime_donations"`
	CurrentStreak     int            `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak     int            `gorm:"not null;default:0" json:"longest_streak"`
	HelpResponseCount int            `gorm:"not null;default:0" json:"help_response_count"`
	ReferralCount     int            `gorm:"not null;default:0" json:"referral_count"`
	LastDonationAt    *time.Time     `json:"last_donation_at"`
	SchemaVersion     int            `gorm:"not null;default:1" json:"schema_version"`
	Version           int64          `gorm:"not null;default:0" json:"-"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (DonorProfile) TableName() string {
	return "donor_profiles"
}

// LivesSaved is derived display data: each donation is counted as three
// lives. It is never stored.
func (p *DonorProfile) LivesSaved() int {
	return p.LifetimeDonations * 3
}
