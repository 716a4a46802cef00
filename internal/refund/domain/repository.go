package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatusUpdate is one guarded state transition write. Every write checks the
// version the caller read; zero rows affected means a concurrent writer won.
type StatusUpdate struct {
	ID              snowflake.ID
	ExpectedVersion int64
	NewStatus       RefundStatus
	ApprovedAt      *time.Time
	ProcessedAt     *time.Time
	CompletedAt     *time.Time
	PaidAt          *time.Time
	FailureReason   *string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, refund *RefundRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RefundRequest, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, limit int, afterID snowflake.ID) ([]*RefundRequest, error)

	// UpdateStatus applies a versioned transition. Returns false without
	// error when the version check fails.
	UpdateStatus(ctx context.Context, db *gorm.DB, update StatusUpdate) (bool, error)

	// LockSource takes a row lock on the source transaction so the
	// remainder check and the insert that follows are serialized per
	// source. Must run inside a transaction.
	LockSource(ctx context.Context, db *gorm.DB, orderID, saleID *snowflake.ID) error

	// SumOpenAgainstSource totals refund amounts against one source
	// transaction, excluding terminal rejected/cancelled/failed requests.
	SumOpenAgainstSource(ctx context.Context, db *gorm.DB, orderID, saleID *snowflake.ID) (decimal.Decimal, error)
}
