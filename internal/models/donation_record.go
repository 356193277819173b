package models

import "time"

type BloodType string

const (
	BloodAPositive  BloodType = "A+"
	BloodANegative  BloodType = "A-"
	BloodBPositive  BloodType = "B+"
	BloodBNegative  BloodType = "B-"
	BloodABPositive BloodType = "AB+"
	BloodABNegative BloodType = "AB-"
	BloodOPositive  BloodType = "O+"
	BloodONegative  BloodType = "O-"
)

// Valid reports whether b is one of the eight recognized blood groups.
func (b BloodType) Valid() bool {
	switch b {
	case BloodAPositive, BloodANegative, BloodBPositive, BloodBNegative,
		BloodABPositive, BloodABNegative, BloodOPositive, BloodONegative:
		return true
	}
	return false
}

// DonationRecord is an append-only record of one recorded donation, kept
// next to its ledger entry. Verified is reserved for a facility confirmation
// workflow and never gates credit awards.
type DonationRecord struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	UserID            string    `gorm:"size:64;not null;index:idx_user_donated" json:"user_id"`
	BloodType         BloodType `gorm:"size:3;not null" json:"blood_type"`
	Location          string    `gorm:"size:255" json:"location"`
	FacilityName      string    `gorm:"size:255" json:"facility_name"`
	UnitsDonated      int       `gorm:"not null;default:1" json:"units_donated"`
	WasUrgentResponse bool      `gorm:"not null;default:false" json:"was_urgent_response"`
	HelpRequestID     *string   `gorm:"size:64" json:"help_request_id,omitempty"`
	CreditsAwarded    int64     `gorm:"not null" json:"credits_awarded"`
	Verified          bool      `gorm:"not null;default:false" json:"verified"`
	DonatedAt         time.Time `gorm:"not null;index:idx_user_donated" json:"donated_at"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DonationRecord) TableName() string {
	return "donation_records"
}
