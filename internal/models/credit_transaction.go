package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type CreditCategory string

const (
	CategoryDonation     CreditCategory = "donation"
	CategoryHelpResponse CreditCategory = "help_response"
	CategoryReferral     CreditCategory = "referral"
)

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// CreditTransaction is one append-only ledger entry. Amounts are always
// positive; the per-user sum must equal donor_profiles.total_credits after
// every committed event. EventKey is the idempotency key: a key can commit
// at most once.
type CreditTransaction struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	UserID      string         `gorm:"size:64;not null;index:idx_user_created" json:"user_id"`
	Category    CreditCategory `gorm:"type:enum('donation','help_response','referral');not null" json:"category"`
	Amount      int64          `gorm:"not null" json:"amount"`
	Description string         `gorm:"size:255;not null" json:"description"`
	Breakdown   JSONB          `gorm:"type:json" json:"breakdown"`
	EventKey    string         `gorm:"uniqueIndex:uk_event_key;size:64;not null" json:"event_key"`
	DonationID  *string        `gorm:"size:36" json:"donation_id,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index:idx_user_created" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
