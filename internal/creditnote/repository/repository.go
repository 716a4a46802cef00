package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	creditnotedomain "github.com/vendora/refundcore/internal/creditnote/domain"
	"gorm.io/gorm"
)

type repository struct{}

// Provide constructs the gorm-backed credit note repository.
func Provide() creditnotedomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, note *creditnotedomain.CreditNote) (bool, error) {
	err := db.WithContext(ctx).Create(note).Error
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*creditnotedomain.CreditNote, error) {
	var note creditnotedomain.CreditNote
	err := db.WithContext(ctx).Where("id = ?", id).First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, creditnotedomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *repository) FindByRefundID(ctx context.Context, db *gorm.DB, refundID snowflake.ID) (*creditnotedomain.CreditNote, error) {
	var note creditnotedomain.CreditNote
	err := db.WithContext(ctx).Where("refund_id = ?", refundID).First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, creditnotedomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// Consume decrements the balance in a single guarded statement so concurrent
// consumers can never take the note below zero.
func (r *repository) Consume(
	ctx context.Context,
	db *gorm.DB,
	id snowflake.ID,
	amount decimal.Decimal,
	now time.Time,
) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE credit_notes
		 SET remaining_amount = remaining_amount - ?,
		     status = CASE WHEN remaining_amount - ? <= 0 THEN ? ELSE status END,
		     updated_at = ?
		 WHERE id = ?
		   AND status = ?
		   AND expires_at > ?
		   AND remaining_amount >= ?`,
		amount,
		amount,
		creditnotedomain.StatusExhausted,
		now,
		id,
		creditnotedomain.StatusActive,
		now,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SumActiveByCustomer(
	ctx context.Context,
	db *gorm.DB,
	customerID snowflake.ID,
	now time.Time,
) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := db.WithContext(ctx).
		Model(&creditnotedomain.CreditNote{}).
		Where("customer_id = ? AND status = ? AND expires_at > ?", customerID, creditnotedomain.StatusActive, now).
		Select("SUM(remaining_amount)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repository) ExpireDue(ctx context.Context, db *gorm.DB, now time.Time) ([]*creditnotedomain.CreditNote, error) {
	var due []*creditnotedomain.CreditNote
	err := db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", creditnotedomain.StatusActive, now).
		Find(&due).Error
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	ids := make([]snowflake.ID, 0, len(due))
	for _, note := range due {
		ids = append(ids, note.ID)
	}
	result := db.WithContext(ctx).
		Model(&creditnotedomain.CreditNote{}).
		Where("id IN ? AND status = ?", ids, creditnotedomain.StatusActive).
		Updates(map[string]any{
			"status":     creditnotedomain.StatusExpired,
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	return due, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
