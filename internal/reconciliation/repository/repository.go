package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	"gorm.io/gorm"
)

type repository struct{}

// Provide constructs the gorm-backed transaction repository.
func Provide() recondomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, txn *recondomain.RefundTransaction) (bool, error) {
	// Single-processing-per-refund guard: the insert only lands when no
	// sibling row is still processing.
	result := db.WithContext(ctx).Exec(
		`INSERT INTO refund_transactions (
			id, refund_id, idempotency_key, gateway, attempt, status, amount,
			gateway_transaction_id, gateway_refund_id, gateway_response,
			failure_reason, processed_at, completed_at, created_at, updated_at
		)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM refund_transactions
			WHERE refund_id = ? AND status = ?
		)`,
		txn.ID,
		txn.RefundID,
		txn.IdempotencyKey,
		txn.Gateway,
		txn.Attempt,
		txn.Status,
		txn.Amount,
		txn.GatewayTransactionID,
		txn.GatewayRefundID,
		txn.GatewayResponse,
		txn.FailureReason,
		txn.ProcessedAt,
		txn.CompletedAt,
		txn.CreatedAt,
		txn.UpdatedAt,
		txn.RefundID,
		recondomain.TransactionProcessing,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*recondomain.RefundTransaction, error) {
	var txn recondomain.RefundTransaction
	err := db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, recondomain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*recondomain.RefundTransaction, error) {
	var txn recondomain.RefundTransaction
	err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, recondomain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListByRefund(ctx context.Context, db *gorm.DB, refundID snowflake.ID) ([]*recondomain.RefundTransaction, error) {
	var txns []*recondomain.RefundTransaction
	err := db.WithContext(ctx).
		Where("refund_id = ?", refundID).
		Order("attempt ASC, id ASC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) Finalize(ctx context.Context, db *gorm.DB, outcome recondomain.Outcome) (bool, error) {
	now := time.Now().UTC()
	fields := map[string]any{
		"status":     outcome.Status,
		"updated_at": now,
	}
	if outcome.GatewayRefundID != nil {
		fields["gateway_refund_id"] = *outcome.GatewayRefundID
	}
	if len(outcome.Response) > 0 {
		fields["gateway_response"] = outcome.Response
	}
	if outcome.FailureReason != nil {
		fields["failure_reason"] = *outcome.FailureReason
	}
	if !outcome.CompletedAt.IsZero() {
		fields["completed_at"] = outcome.CompletedAt
	}

	result := db.WithContext(ctx).
		Model(&recondomain.RefundTransaction{}).
		Where("id = ? AND status = ?", outcome.TransactionID, recondomain.TransactionProcessing).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SumCompleted(ctx context.Context, db *gorm.DB, refundID snowflake.ID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := db.WithContext(ctx).
		Model(&recondomain.RefundTransaction{}).
		Where("refund_id = ? AND status = ?", refundID, recondomain.TransactionCompleted).
		Select("SUM(amount)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repository) ListStale(ctx context.Context, db *gorm.DB, olderThan time.Time, limit int) ([]*recondomain.RefundTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var txns []*recondomain.RefundTransaction
	err := db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", recondomain.TransactionProcessing, olderThan).
		Order("processed_at ASC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
