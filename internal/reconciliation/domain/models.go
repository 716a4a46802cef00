package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Gateway names a money-movement backend.
type Gateway string

const (
	GatewayRazorpay     Gateway = "razorpay"
	GatewayStripe       Gateway = "stripe"
	GatewayPaytm        Gateway = "paytm"
	GatewayManual       Gateway = "manual"
	GatewayBankTransfer Gateway = "bank_transfer"

	// GatewayCreditNote marks settlements that issue store credit instead
	// of moving money out.
	GatewayCreditNote Gateway = "credit_note"
)

// TransactionStatus is the state of one money-movement attempt.
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionProcessing TransactionStatus = "processing"
	TransactionCompleted  TransactionStatus = "completed"
	TransactionFailed     TransactionStatus = "failed"
)

// RefundTransaction is one attempt to move money for a refund. A refund may
// accumulate several rows when earlier attempts failed; at most one row per
// refund is processing at a time. The idempotency key is generated locally
// before the external call so a retried call cannot double-refund.
type RefundTransaction struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	RefundID snowflake.ID `gorm:"not null;index" json:"refund_id"`

	IdempotencyKey string  `gorm:"type:text;not null;uniqueIndex" json:"idempotency_key"`
	Gateway        Gateway `gorm:"type:text;not null" json:"gateway"`
	Attempt        int     `gorm:"not null;default:1" json:"attempt"`

	Status TransactionStatus `gorm:"type:text;not null;index" json:"status"`
	Amount decimal.Decimal   `gorm:"type:numeric(20,2);not null" json:"amount"`

	GatewayTransactionID *string        `gorm:"type:text" json:"gateway_transaction_id,omitempty"`
	GatewayRefundID      *string        `gorm:"type:text" json:"gateway_refund_id,omitempty"`
	GatewayResponse      datatypes.JSON `gorm:"type:jsonb" json:"gateway_response,omitempty"`
	FailureReason        *string        `gorm:"type:text" json:"failure_reason,omitempty"`

	ProcessedAt time.Time  `gorm:"not null" json:"processed_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (RefundTransaction) TableName() string { return "refund_transactions" }

// IsTerminal reports whether the transaction reached a final state.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionCompleted || s == TransactionFailed
}

// StaleTransaction is one row of the operator-facing reconciliation report:
// a transaction left processing past the configured age with no confirmed
// outcome. The system never guesses; an operator resolves it.
type StaleTransaction struct {
	TransactionID   snowflake.ID    `json:"transaction_id"`
	RefundID        snowflake.ID    `json:"refund_id"`
	RefundReference string          `json:"refund_reference"`
	Gateway         Gateway         `json:"gateway"`
	Amount          decimal.Decimal `json:"amount"`
	IdempotencyKey  string          `json:"idempotency_key"`
	ProcessedAt     time.Time       `json:"processed_at"`
	Age             string          `json:"age"`
}
