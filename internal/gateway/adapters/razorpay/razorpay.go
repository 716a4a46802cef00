package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vendora/refundcore/internal/config"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
)

// Adapter refunds Razorpay payments over the v1 REST API. Refunds are
// normally accepted asynchronously; the final outcome arrives by webhook.
type Adapter struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func NewAdapter(cfg config.RazorpayConfig) *Adapter {
	return &Adapter{
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		client:        &http.Client{},
	}
}

func (a *Adapter) Name() recondomain.Gateway { return recondomain.GatewayRazorpay }

type refundRequest struct {
	Amount  int64             `json:"amount"`
	Receipt string            `json:"receipt"`
	Notes   map[string]string `json:"notes"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (a *Adapter) Execute(ctx context.Context, req gatewaydomain.ExecuteRequest) (*gatewaydomain.ExecuteResult, error) {
	if strings.TrimSpace(req.GatewayPaymentID) == "" {
		return nil, gatewaydomain.ErrMissingPaymentRef
	}

	body, err := json.Marshal(refundRequest{
		Amount:  req.Amount.Shift(2).IntPart(),
		Receipt: req.Reference,
		Notes: map[string]string{
			"refund_idempotency_key": req.IdempotencyKey,
			"refund_reference":       req.Reference,
		},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/payments/%s/refund", a.baseURL, req.GatewayPaymentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(a.keyID, a.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Razorpay-Idempotency", req.IdempotencyKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, gatewaydomain.ErrTransient
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, gatewaydomain.ErrTransient
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, gatewaydomain.ErrTransient
	}
	if resp.StatusCode >= 400 {
		return nil, gatewaydomain.ErrPermanent
	}

	var parsed refundResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.ID == "" {
		return nil, gatewaydomain.ErrTransient
	}

	result := &gatewaydomain.ExecuteResult{
		Status:          recondomain.TransactionProcessing,
		GatewayRefundID: parsed.ID,
		Raw:             raw,
	}
	switch parsed.Status {
	case "processed":
		result.Status = recondomain.TransactionCompleted
	case "failed":
		return nil, gatewaydomain.ErrPermanent
	}
	return result, nil
}

func (a *Adapter) Verify(_ context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("X-Razorpay-Signature"))
	if signature == "" {
		return gatewaydomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return gatewaydomain.ErrInvalidSignature
	}
	return nil
}

type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		Refund struct {
			Entity struct {
				ID        string            `json:"id"`
				PaymentID string            `json:"payment_id"`
				Status    string            `json:"status"`
				Notes     map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

func (a *Adapter) Parse(_ context.Context, payload []byte) (*gatewaydomain.WebhookEvent, error) {
	var body webhookBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}

	var eventType string
	var failureReason string
	switch body.Event {
	case "refund.processed":
		eventType = gatewaydomain.EventRefundCompleted
	case "refund.failed":
		eventType = gatewaydomain.EventRefundFailed
		failureReason = "razorpay refund failed"
	default:
		return nil, gatewaydomain.ErrEventIgnored
	}

	entity := body.Payload.Refund.Entity
	if entity.ID == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	return &gatewaydomain.WebhookEvent{
		ProviderEventID: body.Event + ":" + entity.ID,
		Type:            eventType,
		GatewayRefundID: entity.ID,
		IdempotencyKey:  entity.Notes["refund_idempotency_key"],
		FailureReason:   failureReason,
		OccurredAt:      time.Unix(body.CreatedAt, 0).UTC(),
	}, nil
}
