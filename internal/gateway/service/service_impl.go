package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vendora/refundcore/internal/gateway/adapters"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Registry  *adapters.Registry
	Recorder  recondomain.Recorder
	RefundSvc refunddomain.Service
}

type Service struct {
	log       *zap.Logger
	registry  *adapters.Registry
	recorder  recondomain.Recorder
	refundSvc refunddomain.Service
}

func NewService(p Params) gatewaydomain.Service {
	return &Service{
		log:       p.Log.Named("gateway.service"),
		registry:  p.Registry,
		recorder:  p.Recorder,
		refundSvc: p.RefundSvc,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return gatewaydomain.ErrGatewayNotFound
	}
	adapter, err := s.registry.Webhook(provider)
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return gatewaydomain.ErrInvalidPayload
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrEventIgnored) {
			return nil
		}
		return err
	}
	if strings.TrimSpace(event.IdempotencyKey) == "" {
		return gatewaydomain.ErrInvalidEvent
	}

	txn, err := s.recorder.FindByIdempotencyKey(ctx, event.IdempotencyKey)
	if err != nil {
		return err
	}
	if txn.Status.IsTerminal() {
		s.log.Info("webhook replay for settled transaction",
			zap.String("provider", provider),
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("transaction_id", txn.ID.String()),
		)
		return nil
	}

	outcome := refunddomain.TransactionOutcome{
		TransactionID:   txn.ID,
		Succeeded:       event.Type == gatewaydomain.EventRefundCompleted,
		FailureReason:   event.FailureReason,
		GatewayRefundID: event.GatewayRefundID,
		CompletedAt:     event.OccurredAt,
	}
	if err := s.refundSvc.ApplyOutcome(ctx, txn.RefundID, outcome); err != nil {
		return err
	}

	s.log.Info("gateway webhook applied",
		zap.String("provider", provider),
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("refund_id", txn.RefundID.String()),
		zap.String("event_type", event.Type),
	)
	return nil
}
