package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vendora/refundcore/internal/gateway/adapters"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	"github.com/vendora/refundcore/internal/principal"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// webhookGateway is a gateway that also receives webhooks, so the registry
// picks it up for ingestion.
type webhookGateway struct {
	verifyErr error
	event     *gatewaydomain.WebhookEvent
	parseErr  error
}

func (g *webhookGateway) Name() recondomain.Gateway { return recondomain.GatewayRazorpay }

func (g *webhookGateway) Execute(context.Context, gatewaydomain.ExecuteRequest) (*gatewaydomain.ExecuteResult, error) {
	return nil, gatewaydomain.ErrPermanent
}

func (g *webhookGateway) Verify(context.Context, []byte, http.Header) error {
	return g.verifyErr
}

func (g *webhookGateway) Parse(context.Context, []byte) (*gatewaydomain.WebhookEvent, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return g.event, nil
}

type stubRecorder struct {
	txn *recondomain.RefundTransaction
	err error
}

func (r *stubRecorder) RecordAttemptTx(context.Context, *gorm.DB, *recondomain.RefundTransaction) error {
	return nil
}

func (r *stubRecorder) FinalizeTx(context.Context, *gorm.DB, recondomain.Outcome) (bool, error) {
	return false, nil
}

func (r *stubRecorder) FindByIdempotencyKey(_ context.Context, key string) (*recondomain.RefundTransaction, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.txn == nil || r.txn.IdempotencyKey != key {
		return nil, recondomain.ErrTransactionNotFound
	}
	return r.txn, nil
}

func (r *stubRecorder) ListByRefund(context.Context, snowflake.ID) ([]*recondomain.RefundTransaction, error) {
	return nil, nil
}

func (r *stubRecorder) SumCompleted(context.Context, *gorm.DB, snowflake.ID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (r *stubRecorder) StaleReport(context.Context, int) ([]*recondomain.StaleTransaction, error) {
	return nil, nil
}

type stubRefundService struct {
	outcomes []refunddomain.TransactionOutcome
}

func (s *stubRefundService) Create(context.Context, principal.Principal, refunddomain.CreateRequest) (*refunddomain.RefundRequest, error) {
	panic("unused")
}

func (s *stubRefundService) Transition(context.Context, principal.Principal, refunddomain.TransitionRequest) (*refunddomain.RefundRequest, error) {
	panic("unused")
}

func (s *stubRefundService) GetByID(context.Context, principal.Principal, snowflake.ID) (*refunddomain.RefundRequest, error) {
	panic("unused")
}

func (s *stubRefundService) List(context.Context, principal.Principal, refunddomain.ListFilter) (*refunddomain.ListResult, error) {
	panic("unused")
}

func (s *stubRefundService) ApplyOutcome(_ context.Context, _ snowflake.ID, outcome refunddomain.TransactionOutcome) error {
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func newIngestFixture(gw *webhookGateway, rec *stubRecorder) (gatewaydomain.Service, *stubRefundService) {
	refunds := &stubRefundService{}
	svc := NewService(Params{
		Log:       zap.NewNop(),
		Registry:  adapters.NewRegistry(gw),
		Recorder:  rec,
		RefundSvc: refunds,
	})
	return svc, refunds
}

func pendingTxn(key string) *recondomain.RefundTransaction {
	return &recondomain.RefundTransaction{
		ID:             snowflake.ID(1001),
		RefundID:       snowflake.ID(2002),
		IdempotencyKey: key,
		Status:         recondomain.TransactionProcessing,
	}
}

func TestIngestWebhookAppliesOutcome(t *testing.T) {
	occurred := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	gw := &webhookGateway{
		event: &gatewaydomain.WebhookEvent{
			ProviderEventID: "evt_1",
			Type:            gatewaydomain.EventRefundCompleted,
			GatewayRefundID: "rfnd_1",
			IdempotencyKey:  "REF-20240601-ABCDEF-1",
			OccurredAt:      occurred,
		},
	}
	svc, refunds := newIngestFixture(gw, &stubRecorder{txn: pendingTxn("REF-20240601-ABCDEF-1")})

	err := svc.IngestWebhook(context.Background(), "razorpay", []byte(`{}`), http.Header{})
	require.NoError(t, err)
	require.Len(t, refunds.outcomes, 1)
	require.True(t, refunds.outcomes[0].Succeeded)
	require.Equal(t, snowflake.ID(1001), refunds.outcomes[0].TransactionID)
	require.Equal(t, "rfnd_1", refunds.outcomes[0].GatewayRefundID)
	require.Equal(t, occurred, refunds.outcomes[0].CompletedAt)
}

func TestIngestWebhookFailureEvent(t *testing.T) {
	gw := &webhookGateway{
		event: &gatewaydomain.WebhookEvent{
			ProviderEventID: "evt_2",
			Type:            gatewaydomain.EventRefundFailed,
			IdempotencyKey:  "REF-20240601-ABCDEF-1",
			FailureReason:   "insufficient gateway balance",
		},
	}
	svc, refunds := newIngestFixture(gw, &stubRecorder{txn: pendingTxn("REF-20240601-ABCDEF-1")})

	err := svc.IngestWebhook(context.Background(), "razorpay", []byte(`{}`), http.Header{})
	require.NoError(t, err)
	require.Len(t, refunds.outcomes, 1)
	require.False(t, refunds.outcomes[0].Succeeded)
	require.Equal(t, "insufficient gateway balance", refunds.outcomes[0].FailureReason)
}

func TestIngestWebhookReplayIsNoOp(t *testing.T) {
	gw := &webhookGateway{
		event: &gatewaydomain.WebhookEvent{
			ProviderEventID: "evt_3",
			Type:            gatewaydomain.EventRefundCompleted,
			IdempotencyKey:  "REF-20240601-ABCDEF-1",
		},
	}
	settled := pendingTxn("REF-20240601-ABCDEF-1")
	settled.Status = recondomain.TransactionCompleted
	svc, refunds := newIngestFixture(gw, &stubRecorder{txn: settled})

	err := svc.IngestWebhook(context.Background(), "razorpay", []byte(`{}`), http.Header{})
	require.NoError(t, err)
	require.Empty(t, refunds.outcomes)
}

func TestIngestWebhookRejectsBadInput(t *testing.T) {
	gw := &webhookGateway{}
	svc, refunds := newIngestFixture(gw, &stubRecorder{})

	err := svc.IngestWebhook(context.Background(), "unknown", []byte(`{}`), http.Header{})
	require.ErrorIs(t, err, gatewaydomain.ErrGatewayNotFound)

	err = svc.IngestWebhook(context.Background(), "razorpay", []byte(`not json`), http.Header{})
	require.ErrorIs(t, err, gatewaydomain.ErrInvalidPayload)

	gw.verifyErr = gatewaydomain.ErrInvalidSignature
	err = svc.IngestWebhook(context.Background(), "razorpay", []byte(`{}`), http.Header{})
	require.ErrorIs(t, err, gatewaydomain.ErrInvalidSignature)
	gw.verifyErr = nil

	gw.parseErr = gatewaydomain.ErrEventIgnored
	err = svc.IngestWebhook(context.Background(), "razorpay", []byte(`{}`), http.Header{})
	require.NoError(t, err)
	gw.parseErr = nil

	gw.event = &gatewaydomain.WebhookEvent{Type: gatewaydomain.EventRefundCompleted}
	err = svc.IngestWebhook(context.Background(), "razorpay", []byte(`{}`), http.Header{})
	require.ErrorIs(t, err, gatewaydomain.ErrInvalidEvent)

	require.Empty(t, refunds.outcomes)
}

func TestIngestWebhookUnknownKey(t *testing.T) {
	gw := &webhookGateway{
		event: &gatewaydomain.WebhookEvent{
			ProviderEventID: "evt_4",
			Type:            gatewaydomain.EventRefundCompleted,
			IdempotencyKey:  "REF-UNKNOWN-1",
		},
	}
	svc, refunds := newIngestFixture(gw, &stubRecorder{})

	err := svc.IngestWebhook(context.Background(), "razorpay", []byte(`{}`), http.Header{})
	require.ErrorIs(t, err, recondomain.ErrTransactionNotFound)
	require.Empty(t, refunds.outcomes)
}
