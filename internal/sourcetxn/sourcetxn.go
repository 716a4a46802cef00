// Package sourcetxn reads the order/sale a refund is raised against. The
// order and POS subsystems own these tables; this package only consumes
// their settled totals.
package sourcetxn

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the two source transaction types.
type Kind string

const (
	KindOrder Kind = "order"
	KindSale  Kind = "sale"
)

// SourceTransaction is the refund-relevant view of a paid order or sale.
// PaymentGateway and GatewayPaymentID identify the original charge for
// gateway-routed refunds; both are empty for cash sales.
type SourceTransaction struct {
	ID               snowflake.ID
	Kind             Kind
	VendorID         snowflake.ID
	CustomerID       snowflake.ID
	PaidTotal        decimal.Decimal
	PaidAt           time.Time
	PaymentGateway   string
	GatewayPaymentID string
}

// Lookup resolves source transactions for refund validation.
type Lookup interface {
	// FindOrder returns the settled order, or ErrSourceNotFound.
	FindOrder(ctx context.Context, id snowflake.ID) (*SourceTransaction, error)
	// FindSale returns the settled POS sale, or ErrSourceNotFound.
	FindSale(ctx context.Context, id snowflake.ID) (*SourceTransaction, error)
}

var (
	ErrSourceNotFound = errors.New("source_transaction_not_found")
	ErrSourceUnpaid   = errors.New("source_transaction_unpaid")
)
