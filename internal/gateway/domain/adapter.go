package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
)

// ExecuteRequest carries one refund attempt to a gateway. The idempotency
// key is generated before the external call and echoed back through gateway
// metadata so webhooks can be matched to the originating attempt.
type ExecuteRequest struct {
	RefundID         snowflake.ID
	Reference        string
	IdempotencyKey   string
	Amount           decimal.Decimal
	Currency         string
	GatewayPaymentID string
}

// ExecuteResult is the gateway's answer to one attempt. Status is completed
// when the gateway confirmed synchronously and processing when the final
// outcome arrives later by webhook.
type ExecuteResult struct {
	Status          recondomain.TransactionStatus
	GatewayRefundID string
	Raw             []byte
}

// RefundGateway executes refunds against one money-movement backend.
type RefundGateway interface {
	Name() recondomain.Gateway
	Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error)
}

// WebhookAdapter verifies and parses asynchronous gateway notifications.
type WebhookAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*WebhookEvent, error)
}

const (
	EventRefundCompleted = "refund.completed"
	EventRefundFailed    = "refund.failed"
)

// WebhookEvent is the normalized form of a gateway refund notification.
type WebhookEvent struct {
	ProviderEventID string
	Type            string
	GatewayRefundID string
	IdempotencyKey  string
	FailureReason   string
	OccurredAt      time.Time
}

var (
	ErrGatewayNotFound   = errors.New("gateway_not_found")
	ErrMissingPaymentRef = errors.New("missing_gateway_payment_ref")
	ErrTransient         = errors.New("gateway_transient_failure")
	ErrPermanent         = errors.New("gateway_permanent_failure")
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrInvalidPayload    = errors.New("invalid_payload")
	ErrEventIgnored      = errors.New("event_ignored")
	ErrInvalidEvent      = errors.New("invalid_event")
)
