package paytm

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vendora/refundcore/internal/config"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
)

// Adapter refunds Paytm transactions. Refund requests are accepted for
// asynchronous processing; the settled outcome arrives on the refund status
// callback. Requests and callbacks carry an HMAC checksum over the body.
type Adapter struct {
	merchantID  string
	merchantKey string
	baseURL     string
	client      *http.Client
}

func NewAdapter(cfg config.PaytmConfig) *Adapter {
	return &Adapter{
		merchantID:  cfg.MerchantID,
		merchantKey: cfg.MerchantKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      &http.Client{},
	}
}

func (a *Adapter) Name() recondomain.Gateway { return recondomain.GatewayPaytm }

type refundRequest struct {
	MID          string `json:"mid"`
	TxnID        string `json:"txnId"`
	RefID        string `json:"refId"`
	RefundAmount string `json:"refundAmount"`
}

type refundResponse struct {
	Body struct {
		ResultInfo struct {
			ResultStatus string `json:"resultStatus"`
			ResultMsg    string `json:"resultMsg"`
		} `json:"resultInfo"`
		RefundID string `json:"refundId"`
	} `json:"body"`
}

func (a *Adapter) Execute(ctx context.Context, req gatewaydomain.ExecuteRequest) (*gatewaydomain.ExecuteResult, error) {
	if strings.TrimSpace(req.GatewayPaymentID) == "" {
		return nil, gatewaydomain.ErrMissingPaymentRef
	}

	body, err := json.Marshal(refundRequest{
		MID:          a.merchantID,
		TxnID:        req.GatewayPaymentID,
		RefID:        req.IdempotencyKey,
		RefundAmount: req.Amount.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/refund/apply", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Checksum", a.checksum(body))

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
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, gatewaydomain.ErrTransient
	}

	result := &gatewaydomain.ExecuteResult{
		Status:          recondomain.TransactionProcessing,
		GatewayRefundID: parsed.Body.RefundID,
		Raw:             raw,
	}
	switch parsed.Body.ResultInfo.ResultStatus {
	case "TXN_SUCCESS":
		result.Status = recondomain.TransactionCompleted
	case "TXN_FAILURE":
		return nil, gatewaydomain.ErrPermanent
	}
	return result, nil
}

func (a *Adapter) Verify(_ context.Context, payload []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get("X-Checksum"))
	if signature == "" {
		return gatewaydomain.ErrInvalidSignature
	}
	if !hmac.Equal([]byte(a.checksum(payload)), []byte(signature)) {
		return gatewaydomain.ErrInvalidSignature
	}
	return nil
}

type callbackBody struct {
	Body struct {
		ResultInfo struct {
			ResultStatus string `json:"resultStatus"`
			ResultMsg    string `json:"resultMsg"`
		} `json:"resultInfo"`
		RefID    string `json:"refId"`
		RefundID string `json:"refundId"`
		TxnDate  string `json:"txnDate"`
	} `json:"body"`
}

func (a *Adapter) Parse(_ context.Context, payload []byte) (*gatewaydomain.WebhookEvent, error) {
	var body callbackBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, gatewaydomain.ErrInvalidPayload
	}
	if body.Body.RefID == "" {
		return nil, gatewaydomain.ErrInvalidEvent
	}

	var eventType string
	var failureReason string
	switch body.Body.ResultInfo.ResultStatus {
	case "TXN_SUCCESS":
		eventType = gatewaydomain.EventRefundCompleted
	case "TXN_FAILURE":
		eventType = gatewaydomain.EventRefundFailed
		failureReason = body.Body.ResultInfo.ResultMsg
	case "PENDING":
		return nil, gatewaydomain.ErrEventIgnored
	default:
		return nil, gatewaydomain.ErrEventIgnored
	}

	occurredAt := time.Now().UTC()
	if parsed, err := time.Parse("2006-01-02 15:04:05.0", body.Body.TxnDate); err == nil {
		occurredAt = parsed.UTC()
	}

	return &gatewaydomain.WebhookEvent{
		ProviderEventID: "paytm:" + body.Body.RefID + ":" + body.Body.ResultInfo.ResultStatus,
		Type:            eventType,
		GatewayRefundID: body.Body.RefundID,
		IdempotencyKey:  body.Body.RefID,
		FailureReason:   failureReason,
		OccurredAt:      occurredAt,
	}, nil
}

func (a *Adapter) checksum(body []byte) string {
	mac := hmac.New(sha256.New, []byte(a.merchantKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
