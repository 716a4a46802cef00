package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Demo source transactions for local development. Each row is a paid order or
// POS sale a refund can be raised against; the fixed IDs keep curl examples
// and local API clients stable across restarts.
type demoOrder struct {
	id             int64
	vendorID       int64
	customerID     int64
	paidTotal      string
	gateway        string
	gatewayPayment string
}

var demoOrders = []demoOrder{
	{id: 9001, vendorID: 1, customerID: 501, paidTotal: "2499.00", gateway: "razorpay", gatewayPayment: "pay_demo_razorpay_1"},
	{id: 9002, vendorID: 1, customerID: 502, paidTotal: "899.50", gateway: "stripe", gatewayPayment: "pi_demo_stripe_1"},
	{id: 9003, vendorID: 2, customerID: 503, paidTotal: "15750.00", gateway: "paytm", gatewayPayment: "demo_paytm_txn_1"},
}

var demoSales = []demoOrder{
	{id: 9101, vendorID: 1, customerID: 501, paidTotal: "349.00"},
	{id: 9102, vendorID: 2, customerID: 504, paidTotal: "1200.00", gateway: "razorpay", gatewayPayment: "pay_demo_razorpay_2"},
}

// EnsureDemoSources inserts the demo orders and POS sales when they are
// missing. Idempotent so repeated startups do not duplicate rows.
//
// In production the orders and pos_sales tables belong to the commerce
// platform and already exist in the shared database; the CREATE TABLE here
// only matters for an empty local database.
func EnsureDemoSources(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"orders", "pos_sales"} {
			if err := ensureSourceTable(ctx, tx, table); err != nil {
				return err
			}
		}
		for _, order := range demoOrders {
			if err := ensureSource(ctx, tx, "orders", order, now); err != nil {
				return err
			}
		}
		for _, sale := range demoSales {
			if err := ensureSource(ctx, tx, "pos_sales", sale, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureSourceTable(ctx context.Context, tx *gorm.DB, table string) error {
	return tx.WithContext(ctx).Exec(
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id BIGINT PRIMARY KEY,
			vendor_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			paid_total NUMERIC(20,2),
			paid_at TIMESTAMPTZ,
			payment_gateway TEXT,
			gateway_payment_id TEXT
		)`,
	).Error
}

func ensureSource(ctx context.Context, tx *gorm.DB, table string, src demoOrder, now time.Time) error {
	var count int64
	if err := tx.WithContext(ctx).Table(table).
		Where("id = ?", snowflake.ID(src.id)).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var gateway, gatewayPayment any
	if src.gateway != "" {
		gateway = src.gateway
		gatewayPayment = src.gatewayPayment
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO `+table+` (id, vendor_id, customer_id, paid_total, paid_at, payment_gateway, gateway_payment_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snowflake.ID(src.id),
		snowflake.ID(src.vendorID),
		snowflake.ID(src.customerID),
		src.paidTotal,
		now,
		gateway,
		gatewayPayment,
	).Error
}
