package sourcetxn

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/vendora/refundcore/internal/cache"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Settled totals never change, so cache hits are safe for the full TTL.
const cacheTTL = 5 * time.Minute

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type gormLookup struct {
	db    *gorm.DB
	log   *zap.Logger
	cache cache.Cache[snowflake.ID, *SourceTransaction]
}

// NewLookup builds the gorm-backed source transaction lookup.
func NewLookup(p Params) Lookup {
	return &gormLookup{
		db:    p.DB,
		log:   p.Log.Named("sourcetxn"),
		cache: cache.NewTTLCache[snowflake.ID, *SourceTransaction](),
	}
}

type sourceRow struct {
	ID               snowflake.ID
	VendorID         snowflake.ID
	CustomerID       snowflake.ID
	PaidTotal        decimal.NullDecimal
	PaidAt           *time.Time
	PaymentGateway   *string
	GatewayPaymentID *string
}

func (l *gormLookup) FindOrder(ctx context.Context, id snowflake.ID) (*SourceTransaction, error) {
	return l.find(ctx, id, KindOrder,
		`SELECT id, vendor_id, customer_id, paid_total, paid_at, payment_gateway, gateway_payment_id
		 FROM orders
		 WHERE id = ?`)
}

func (l *gormLookup) FindSale(ctx context.Context, id snowflake.ID) (*SourceTransaction, error) {
	return l.find(ctx, id, KindSale,
		`SELECT id, vendor_id, customer_id, paid_total, paid_at, payment_gateway, gateway_payment_id
		 FROM pos_sales
		 WHERE id = ?`)
}

func (l *gormLookup) find(ctx context.Context, id snowflake.ID, kind Kind, query string) (*SourceTransaction, error) {
	if cached, ok := l.cache.Get(id); ok && cached.Kind == kind {
		return cached, nil
	}

	var row sourceRow
	if err := l.db.WithContext(ctx).Raw(query, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, ErrSourceNotFound
	}
	if row.PaidAt == nil || !row.PaidTotal.Valid || !row.PaidTotal.Decimal.IsPositive() {
		return nil, ErrSourceUnpaid
	}

	txn := &SourceTransaction{
		ID:         row.ID,
		Kind:       kind,
		VendorID:   row.VendorID,
		CustomerID: row.CustomerID,
		PaidTotal:  row.PaidTotal.Decimal,
		PaidAt:     row.PaidAt.UTC(),
	}
	if row.PaymentGateway != nil {
		txn.PaymentGateway = *row.PaymentGateway
	}
	if row.GatewayPaymentID != nil {
		txn.GatewayPaymentID = *row.GatewayPaymentID
	}
	l.cache.Set(id, txn, cacheTTL)
	return txn, nil
}
