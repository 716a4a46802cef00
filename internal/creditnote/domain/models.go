package domain

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CreditNoteStatus is the ledger state of a store-credit entry.
type CreditNoteStatus string

const (
	StatusActive    CreditNoteStatus = "active"
	StatusExhausted CreditNoteStatus = "exhausted"
	StatusExpired   CreditNoteStatus = "expired"
)

// CreditNote is a store-credit ledger entry. remaining_amount decreases only
// through atomic consumption; 0 <= remaining_amount <= amount holds at all
// times.
type CreditNote struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`

	// Set when the note was materialized by a completed credit_note refund;
	// unique so webhook replays cannot issue twice. Nil for manual goodwill
	// issuance.
	RefundID *snowflake.ID `gorm:"uniqueIndex" json:"refund_id,omitempty"`

	Amount          decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"amount"`
	RemainingAmount decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"remaining_amount"`
	Status          CreditNoteStatus `gorm:"type:text;not null;index" json:"status"`
	Reference       string           `gorm:"type:text;not null;uniqueIndex" json:"reference"`

	IssuedAt  time.Time `gorm:"not null" json:"issued_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (CreditNote) TableName() string { return "credit_notes" }

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReference builds a credit note reference, format CN-YYYYMMDD-XXXX.
func NewReference(now time.Time) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("CN-%s-%s", now.UTC().Format("20060102"), string(buf))
}
