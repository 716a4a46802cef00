package domain

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RefundMethod selects how money leaves the system.
type RefundMethod string

const (
	MethodGateway      RefundMethod = "gateway"
	MethodCreditNote   RefundMethod = "credit_note"
	MethodBankTransfer RefundMethod = "bank_transfer"
	MethodManual       RefundMethod = "manual"
)

// RefundStatus is the lifecycle state of a refund request.
type RefundStatus string

const (
	StatusPending    RefundStatus = "pending"
	StatusApproved   RefundStatus = "approved"
	StatusRejected   RefundStatus = "rejected"
	StatusProcessing RefundStatus = "processing"
	StatusCompleted  RefundStatus = "completed"
	StatusFailed     RefundStatus = "failed"
	StatusCancelled  RefundStatus = "cancelled"
)

// IsTerminal reports whether no further transition may leave the status.
func (s RefundStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// ValidMethod reports whether the method is one of the supported variants.
func ValidMethod(method RefundMethod) bool {
	switch method {
	case MethodGateway, MethodCreditNote, MethodBankTransfer, MethodManual:
		return true
	default:
		return false
	}
}

// RefundRequest is one customer's request for money back against exactly one
// source transaction. Amount is fixed at creation; status only moves forward
// through the transition table; version guards optimistic concurrency.
type RefundRequest struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	VendorID   snowflake.ID  `gorm:"not null;index" json:"vendor_id"`
	CustomerID snowflake.ID  `gorm:"not null;index" json:"customer_id"`

	// Exactly one of OrderID / SaleID is set.
	OrderID *snowflake.ID `gorm:"index" json:"order_id,omitempty"`
	SaleID  *snowflake.ID `gorm:"index" json:"sale_id,omitempty"`

	Amount    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Method    RefundMethod    `gorm:"type:text;not null" json:"method"`
	Status    RefundStatus    `gorm:"type:text;not null;index" json:"status"`
	Reason    string          `gorm:"type:text" json:"reason"`
	Reference string          `gorm:"type:text;not null;uniqueIndex" json:"reference"`

	FailureReason *string `gorm:"type:text" json:"failure_reason,omitempty"`

	RequestedAt time.Time  `gorm:"not null" json:"requested_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`

	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (RefundRequest) TableName() string { return "refund_requests" }

// SourceRef returns whichever source transaction reference is set.
func (r *RefundRequest) SourceRef() (snowflake.ID, bool) {
	if r.OrderID != nil && *r.OrderID != 0 {
		return *r.OrderID, true
	}
	if r.SaleID != nil && *r.SaleID != 0 {
		return *r.SaleID, true
	}
	return 0, false
}

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReference builds a globally unique human-readable refund reference,
// format REF-YYYYMMDD-XXXXXX.
func NewReference(now time.Time) string {
	return fmt.Sprintf("REF-%s-%s", now.UTC().Format("20060102"), randomToken(6))
}

func randomToken(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return string(buf)
}
