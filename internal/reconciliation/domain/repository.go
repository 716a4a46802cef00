package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Outcome finalizes a processing transaction.
type Outcome struct {
	TransactionID   snowflake.ID
	Status          TransactionStatus
	GatewayRefundID *string
	Response        []byte
	FailureReason   *string
	CompletedAt     time.Time
}

type Repository interface {
	// Insert records a new attempt. Returns false when another transaction
	// for the same refund is still processing.
	Insert(ctx context.Context, db *gorm.DB, txn *RefundTransaction) (bool, error)

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RefundTransaction, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*RefundTransaction, error)
	ListByRefund(ctx context.Context, db *gorm.DB, refundID snowflake.ID) ([]*RefundTransaction, error)

	// Finalize applies an outcome only while the transaction is still
	// processing. Returns false when it already reached a terminal state.
	Finalize(ctx context.Context, db *gorm.DB, outcome Outcome) (bool, error)

	SumCompleted(ctx context.Context, db *gorm.DB, refundID snowflake.ID) (decimal.Decimal, error)
	ListStale(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]*RefundTransaction, error)
}
