package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert stores a new note. Returns false when a note for the same
	// refund already exists (idempotency guard).
	Insert(ctx context.Context, db *gorm.DB, note *CreditNote) (bool, error)

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CreditNote, error)
	FindByRefundID(ctx context.Context, db *gorm.DB, refundID snowflake.ID) (*CreditNote, error)

	// Consume runs the guarded balance decrement. Returns false when the
	// precondition (active, unexpired, sufficient balance) did not hold.
	Consume(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal, now time.Time) (bool, error)

	SumActiveByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID, now time.Time) (decimal.Decimal, error)
	ExpireDue(ctx context.Context, db *gorm.DB, now time.Time) ([]*CreditNote, error)
}
