package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	"gorm.io/gorm"
)

type repository struct{}

// Provide constructs the gorm-backed refund repository.
func Provide() refunddomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, refund *refunddomain.RefundRequest) error {
	err := db.WithContext(ctx).Create(refund).Error
	if err != nil && isUniqueViolation(err) {
		return refunddomain.ErrDuplicateReference
	}
	return err
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*refunddomain.RefundRequest, error) {
	var refund refunddomain.RefundRequest
	err := db.WithContext(ctx).Where("id = ?", id).First(&refund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, refunddomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) List(
	ctx context.Context,
	db *gorm.DB,
	filter refunddomain.ListFilter,
	limit int,
	afterID snowflake.ID,
) ([]*refunddomain.RefundRequest, error) {
	query := db.WithContext(ctx).Model(&refunddomain.RefundRequest{})
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.VendorID != 0 {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", filter.Method)
	}
	if afterID != 0 {
		query = query.Where("id < ?", afterID)
	}
	if limit <= 0 {
		limit = 25
	}

	var refunds []*refunddomain.RefundRequest
	if err := query.Order("id DESC").Limit(limit).Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

func (r *repository) UpdateStatus(ctx context.Context, db *gorm.DB, update refunddomain.StatusUpdate) (bool, error) {
	now := time.Now().UTC()
	fields := map[string]any{
		"status":     update.NewStatus,
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}
	if update.ApprovedAt != nil {
		fields["approved_at"] = *update.ApprovedAt
	}
	if update.ProcessedAt != nil {
		fields["processed_at"] = *update.ProcessedAt
	}
	if update.CompletedAt != nil {
		fields["completed_at"] = *update.CompletedAt
	}
	if update.PaidAt != nil {
		fields["paid_at"] = *update.PaidAt
	}
	if update.FailureReason != nil {
		fields["failure_reason"] = *update.FailureReason
	}

	result := db.WithContext(ctx).
		Model(&refunddomain.RefundRequest{}).
		Where("id = ? AND version = ?", update.ID, update.ExpectedVersion).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) LockSource(
	ctx context.Context,
	db *gorm.DB,
	orderID, saleID *snowflake.ID,
) error {
	// SQLite serializes writing transactions on its own; the explicit row
	// lock only exists for Postgres read-committed.
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	table := "orders"
	id := orderID
	if saleID != nil && *saleID != 0 {
		table = "pos_sales"
		id = saleID
	}
	if id == nil || *id == 0 {
		return refunddomain.ErrInvalidSourceRef
	}

	var locked snowflake.ID
	return db.WithContext(ctx).
		Raw(`SELECT id FROM `+table+` WHERE id = ? FOR UPDATE`, *id).
		Scan(&locked).Error
}

func (r *repository) SumOpenAgainstSource(
	ctx context.Context,
	db *gorm.DB,
	orderID, saleID *snowflake.ID,
) (decimal.Decimal, error) {
	query := db.WithContext(ctx).
		Model(&refunddomain.RefundRequest{}).
		Where("status NOT IN ?", []refunddomain.RefundStatus{
			refunddomain.StatusRejected,
			refunddomain.StatusCancelled,
			refunddomain.StatusFailed,
		})
	switch {
	case orderID != nil && *orderID != 0:
		query = query.Where("order_id = ?", *orderID)
	case saleID != nil && *saleID != 0:
		query = query.Where("sale_id = ?", *saleID)
	default:
		return decimal.Zero, refunddomain.ErrInvalidSourceRef
	}

	var total decimal.NullDecimal
	if err := query.Select("SUM(amount)").Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
