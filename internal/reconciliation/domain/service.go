package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Recorder appends the immutable transaction trail for refunds. Writers call
// the Tx variants inside the same database transaction as the refund state
// change so the trail and the state commit together.
type Recorder interface {
	RecordAttemptTx(ctx context.Context, tx *gorm.DB, txn *RefundTransaction) error
	FinalizeTx(ctx context.Context, tx *gorm.DB, outcome Outcome) (bool, error)

	FindByIdempotencyKey(ctx context.Context, key string) (*RefundTransaction, error)
	ListByRefund(ctx context.Context, refundID snowflake.ID) ([]*RefundTransaction, error)
	SumCompleted(ctx context.Context, tx *gorm.DB, refundID snowflake.ID) (decimal.Decimal, error)

	// StaleReport lists transactions stuck processing past the configured
	// age, for the operator-facing reconciliation view.
	StaleReport(ctx context.Context, limit int) ([]*StaleTransaction, error)
}

var (
	ErrTransactionNotFound = errors.New("transaction_not_found")
	ErrTransactionInFlight = errors.New("transaction_in_flight")
	ErrOverRefund          = errors.New("completed_amount_exceeds_refund")
)
