package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/refund"
	"github.com/stripe/stripe-go/v83/webhook"
	"github.com/vendora/refundcore/internal/config"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
)

const metadataIdempotencyKey = "refund_idempotency_key"

// Adapter moves money back through Stripe. Refunds are created against the
// original payment intent; outcomes normally confirm synchronously but may
// settle later by webhook.
type Adapter struct {
	webhookSecret string
}

func NewAdapter(cfg config.StripeConfig) *Adapter {
	stripeapi.Key = cfg.SecretKey
	return &Adapter{webhookSecret: cfg.WebhookSecret}
}

func (a *Adapter) Name() recondomain.Gateway { return recondomain.GatewayStripe }

func (a *Adapter) Execute(ctx context.Context, req gatewaydomain.ExecuteRequest) (*gatewaydomain.ExecuteResult, error) {
	if strings.TrimSpace(req.GatewayPaymentID) == "" {
		return nil, gatewaydomain.ErrMissingPaymentRef
	}

	params := &stripeapi.RefundParams{
		PaymentIntent: stripeapi.String(req.GatewayPaymentID),
		Amount:        stripeapi.Int64(req.Amount.Shift(2).IntPart()),
		Reason:        stripeapi.String(string(stripeapi.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata(metadataIdempotencyKey, req.IdempotencyKey)
	params.AddMetadata("refund_reference", req.Reference)

	created, err := refund.New(params)
	if err != nil {
		return nil, classify(err)
	}

	raw, _ := json.Marshal(created)
	result := &gatewaydomain.ExecuteResult{
		Status:          recondomain.TransactionProcessing,
		GatewayRefundID: created.ID,
		Raw:             raw,
	}
	if created.Status == stripeapi.RefundStatusSucceeded {
		result.Status = recondomain.TransactionCompleted
	}
	if created.Status == stripeapi.RefundStatusFailed {
		return nil, gatewaydomain.ErrPermanent
	}
	return result, nil
}

func (a *Adapter) Verify(_ context.Context, payload []byte, headers http.Header) error {
	_, err := webhook.ConstructEvent(payload, headers.Get("Stripe-Signature"), a.webhookSecret)
	if err != nil {
		return gatewaydomain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) Parse(_ context.Context, payload []byte) (*gatewaydomain.WebhookEvent, error) {
	var event stripeapi.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}

	var eventType string
	switch string(event.Type) {
	case "refund.updated", "charge.refund.updated":
		eventType = gatewaydomain.EventRefundCompleted
	case "refund.failed":
		eventType = gatewaydomain.EventRefundFailed
	default:
		return nil, gatewaydomain.ErrEventIgnored
	}

	var body struct {
		ID            string            `json:"id"`
		Status        string            `json:"status"`
		FailureReason string            `json:"failure_reason"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.Data.Raw, &body); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}

	// A refund.updated that has not settled yet carries no outcome.
	switch body.Status {
	case "succeeded":
		eventType = gatewaydomain.EventRefundCompleted
	case "failed":
		eventType = gatewaydomain.EventRefundFailed
	case "pending":
		return nil, gatewaydomain.ErrEventIgnored
	}

	return &gatewaydomain.WebhookEvent{
		ProviderEventID: event.ID,
		Type:            eventType,
		GatewayRefundID: body.ID,
		IdempotencyKey:  body.Metadata[metadataIdempotencyKey],
		FailureReason:   body.FailureReason,
		OccurredAt:      time.Unix(event.Created, 0).UTC(),
	}, nil
}

func classify(err error) error {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
			return gatewaydomain.ErrTransient
		}
		return gatewaydomain.ErrPermanent
	}
	// Network-level failures are worth retrying.
	return gatewaydomain.ErrTransient
}
