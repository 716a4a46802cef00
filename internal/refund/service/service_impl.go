package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/vendora/refundcore/internal/audit/domain"
	"github.com/vendora/refundcore/internal/authz"
	"github.com/vendora/refundcore/internal/clock"
	"github.com/vendora/refundcore/internal/config"
	creditnotedomain "github.com/vendora/refundcore/internal/creditnote/domain"
	"github.com/vendora/refundcore/internal/events"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	"github.com/vendora/refundcore/internal/gateway/executor"
	"github.com/vendora/refundcore/internal/money"
	"github.com/vendora/refundcore/internal/principal"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	"github.com/vendora/refundcore/internal/sourcetxn"
	"github.com/vendora/refundcore/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const referenceRetries = 3

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        refunddomain.Repository
	Sources     sourcetxn.Lookup
	Gate        *authz.Gate
	Recorder    recondomain.Recorder
	Executor    *executor.Executor
	CreditNotes creditnotedomain.Service
	AuditSvc    auditdomain.Service
	Outbox      *events.Outbox
	Cfg         config.Config
	Clock       clock.Clock
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        refunddomain.Repository
	sources     sourcetxn.Lookup
	gate        *authz.Gate
	recorder    recondomain.Recorder
	executor    *executor.Executor
	creditNotes creditnotedomain.Service
	auditSvc    auditdomain.Service
	outbox      *events.Outbox
	currency    string
	clock       clock.Clock
}

func NewService(p Params) refunddomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("refund.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		sources:     p.Sources,
		gate:        p.Gate,
		recorder:    p.Recorder,
		executor:    p.Executor,
		creditNotes: p.CreditNotes,
		auditSvc:    p.AuditSvc,
		outbox:      p.Outbox,
		currency:    p.Cfg.Currency,
		clock:       p.Clock,
	}
}

func (s *Service) Create(
	ctx context.Context,
	caller principal.Principal,
	req refunddomain.CreateRequest,
) (*refunddomain.RefundRequest, error) {
	src, err := s.resolveSource(ctx, req.OrderID, req.SaleID)
	if err != nil {
		return nil, err
	}
	if !refunddomain.ValidMethod(req.Method) {
		return nil, refunddomain.ErrInvalidMethod
	}
	if req.Method == refunddomain.MethodGateway && src.PaymentGateway == "" {
		// Cash sales have no charge to refund against.
		return nil, refunddomain.ErrInvalidMethod
	}
	amount, err := money.Normalize(req.Amount)
	if err != nil {
		return nil, refunddomain.ErrInvalidAmount
	}
	if req.CustomerID != 0 && req.CustomerID != src.CustomerID {
		return nil, refunddomain.ErrInvalidSourceRef
	}
	if err := s.gate.CanCreate(caller, src); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	refund := &refunddomain.RefundRequest{
		ID:          s.genID.Generate(),
		VendorID:    src.VendorID,
		CustomerID:  src.CustomerID,
		OrderID:     req.OrderID,
		SaleID:      req.SaleID,
		Amount:      amount,
		Method:      req.Method,
		Status:      refunddomain.StatusPending,
		Reason:      req.Reason,
		RequestedAt: now,
		Version:     1,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serialize concurrent creates against the same source so two
		// requests cannot both pass the remainder check.
		if err := s.repo.LockSource(ctx, tx, req.OrderID, req.SaleID); err != nil {
			return err
		}

		open, err := s.repo.SumOpenAgainstSource(ctx, tx, req.OrderID, req.SaleID)
		if err != nil {
			return err
		}
		if open.Add(amount).GreaterThan(src.PaidTotal) {
			return refunddomain.ErrAmountExceedsSource
		}

		for attempt := 0; ; attempt++ {
			refund.Reference = refunddomain.NewReference(now)
			err = s.repo.Insert(ctx, tx, refund)
			if errors.Is(err, refunddomain.ErrDuplicateReference) && attempt < referenceRetries {
				continue
			}
			if err != nil {
				return err
			}
			break
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventRefundRequested,
			DedupeKey: events.EventRefundRequested + ":" + refund.ID.String(),
			Payload:   refundPayload(refund),
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, refund, "refund.requested", map[string]any{
		"amount": amount.StringFixed(2),
		"method": string(req.Method),
	})
	s.log.Info("refund requested",
		zap.String("refund_id", refund.ID.String()),
		zap.String("reference", refund.Reference),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("method", string(req.Method)),
	)
	return refund, nil
}

func (s *Service) Transition(
	ctx context.Context,
	caller principal.Principal,
	req refunddomain.TransitionRequest,
) (*refunddomain.RefundRequest, error) {
	if req.ExpectedVersion <= 0 {
		return nil, refunddomain.ErrVersionRequired
	}

	refund, err := s.repo.FindByID(ctx, s.db, req.RefundID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanTransition(caller, refund, req.Action); err != nil {
		return nil, err
	}
	if req.ExpectedVersion != refund.Version {
		return nil, refunddomain.ErrStaleState
	}

	update, eventType, err := s.plan(refund, req.Action)
	if err != nil {
		return nil, err
	}

	if err := s.applyTransition(ctx, refund, update, eventType); err != nil {
		return nil, err
	}

	if req.Action == refunddomain.ActionProcess {
		if err := s.settle(ctx, refund.ID); err != nil {
			return nil, err
		}
	}

	return s.repo.FindByID(ctx, s.db, req.RefundID)
}

// plan validates the requested action against the transition table and
// builds the guarded write.
func (s *Service) plan(
	refund *refunddomain.RefundRequest,
	action refunddomain.TransitionAction,
) (refunddomain.StatusUpdate, string, error) {
	now := s.clock.Now()
	update := refunddomain.StatusUpdate{
		ID:              refund.ID,
		ExpectedVersion: refund.Version,
	}

	switch action {
	case refunddomain.ActionApprove:
		if refund.Status != refunddomain.StatusPending {
			return update, "", refunddomain.ErrInvalidTransition
		}
		update.NewStatus = refunddomain.StatusApproved
		update.ApprovedAt = &now
		return update, events.EventRefundApproved, nil

	case refunddomain.ActionReject:
		if refund.Status != refunddomain.StatusPending && refund.Status != refunddomain.StatusApproved {
			return update, "", refunddomain.ErrInvalidTransition
		}
		update.NewStatus = refunddomain.StatusRejected
		return update, events.EventRefundRejected, nil

	case refunddomain.ActionCancel:
		if refund.Status != refunddomain.StatusPending && refund.Status != refunddomain.StatusApproved {
			return update, "", refunddomain.ErrInvalidTransition
		}
		update.NewStatus = refunddomain.StatusCancelled
		return update, events.EventRefundCancelled, nil

	case refunddomain.ActionProcess:
		if refund.Status != refunddomain.StatusApproved {
			return update, "", refunddomain.ErrInvalidTransition
		}
		update.NewStatus = refunddomain.StatusProcessing
		update.ProcessedAt = &now
		return update, "", nil

	default:
		return update, "", refunddomain.ErrInvalidTransition
	}
}

func (s *Service) applyTransition(
	ctx context.Context,
	refund *refunddomain.RefundRequest,
	update refunddomain.StatusUpdate,
	eventType string,
) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.repo.UpdateStatus(ctx, tx, update)
		if err != nil {
			return err
		}
		if !applied {
			return refunddomain.ErrStaleState
		}
		if eventType == "" {
			return nil
		}
		updated := *refund
		updated.Status = update.NewStatus
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      eventType,
			DedupeKey: eventType + ":" + refund.ID.String(),
			Payload:   refundPayload(&updated),
		})
	})
	if err != nil {
		return err
	}

	s.audit(ctx, refund, "refund."+string(update.NewStatus), nil)
	s.log.Info("refund transitioned",
		zap.String("refund_id", refund.ID.String()),
		zap.String("from", string(refund.Status)),
		zap.String("to", string(update.NewStatus)),
	)
	return nil
}

// settle moves money for a refund that just entered processing. Credit note
// refunds settle internally; everything else goes through a gateway under
// the retry budget, one transaction row per attempt.
func (s *Service) settle(ctx context.Context, refundID snowflake.ID) error {
	refund, err := s.repo.FindByID(ctx, s.db, refundID)
	if err != nil {
		return err
	}
	if refund.Status != refunddomain.StatusProcessing {
		return refunddomain.ErrInvalidTransition
	}

	if refund.Method == refunddomain.MethodCreditNote {
		return s.settleWithCredit(ctx, refund)
	}

	name, paymentRef, err := s.resolveGateway(ctx, refund)
	if err != nil {
		return err
	}

	budget := s.executor.Budget()
	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1 {
			if err := s.executor.Wait(ctx, attempt-1); err != nil {
				return err
			}
		}

		txn, err := s.recordAttempt(ctx, refund, name, paymentRef, attempt)
		if err != nil {
			return err
		}

		result, execErr := s.executor.ExecuteOnce(ctx, name, gatewaydomain.ExecuteRequest{
			RefundID:         refund.ID,
			Reference:        refund.Reference,
			IdempotencyKey:   txn.IdempotencyKey,
			Amount:           refund.Amount,
			Currency:         s.currency,
			GatewayPaymentID: paymentRef,
		})
		if execErr == nil {
			if result.Status == recondomain.TransactionCompleted {
				return s.ApplyOutcome(ctx, refund.ID, refunddomain.TransactionOutcome{
					TransactionID:   txn.ID,
					Succeeded:       true,
					GatewayRefundID: result.GatewayRefundID,
					CompletedAt:     s.clock.Now(),
				})
			}
			// Gateway accepted the refund; the webhook settles it.
			return nil
		}

		if errors.Is(execErr, gatewaydomain.ErrTransient) && attempt < budget {
			if err := s.closeAttempt(ctx, txn.ID, execErr.Error()); err != nil {
				return err
			}
			continue
		}

		return s.ApplyOutcome(ctx, refund.ID, refunddomain.TransactionOutcome{
			TransactionID: txn.ID,
			Succeeded:     false,
			FailureReason: execErr.Error(),
		})
	}
	return nil
}

// settleWithCredit issues store credit and completes the refund. Issuance
// runs first so a crash between the two steps is recovered by the idempotent
// issue on retry, never by double credit.
func (s *Service) settleWithCredit(ctx context.Context, refund *refunddomain.RefundRequest) error {
	txn, err := s.recordAttempt(ctx, refund, recondomain.GatewayCreditNote, "", 1)
	if err != nil {
		return err
	}

	note, err := s.creditNotes.IssueFromRefund(ctx, refund.ID, refund.CustomerID, refund.Amount)
	if err != nil && !errors.Is(err, creditnotedomain.ErrDuplicateIssuance) {
		applyErr := s.ApplyOutcome(ctx, refund.ID, refunddomain.TransactionOutcome{
			TransactionID: txn.ID,
			Succeeded:     false,
			FailureReason: "credit note issuance failed",
		})
		if applyErr != nil {
			return applyErr
		}
		return err
	}

	return s.ApplyOutcome(ctx, refund.ID, refunddomain.TransactionOutcome{
		TransactionID:   txn.ID,
		Succeeded:       true,
		GatewayRefundID: note.Reference,
		CompletedAt:     s.clock.Now(),
	})
}

func (s *Service) recordAttempt(
	ctx context.Context,
	refund *refunddomain.RefundRequest,
	gateway recondomain.Gateway,
	paymentRef string,
	attempt int,
) (*recondomain.RefundTransaction, error) {
	now := s.clock.Now()
	txn := &recondomain.RefundTransaction{
		ID:             s.genID.Generate(),
		RefundID:       refund.ID,
		IdempotencyKey: fmt.Sprintf("%s-%d", refund.Reference, attempt),
		Gateway:        gateway,
		Attempt:        attempt,
		Status:         recondomain.TransactionProcessing,
		Amount:         refund.Amount,
		ProcessedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if paymentRef != "" {
		txn.GatewayTransactionID = &paymentRef
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.recorder.RecordAttemptTx(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// closeAttempt finalizes a mid-budget transient failure without touching the
// refund status; the next attempt follows.
func (s *Service) closeAttempt(ctx context.Context, txnID snowflake.ID, reason string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.recorder.FinalizeTx(ctx, tx, recondomain.Outcome{
			TransactionID: txnID,
			Status:        recondomain.TransactionFailed,
			FailureReason: &reason,
		})
		return err
	})
}

func (s *Service) ApplyOutcome(
	ctx context.Context,
	refundID snowflake.ID,
	outcome refunddomain.TransactionOutcome,
) error {
	var refund *refunddomain.RefundRequest
	var eventType string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reconOutcome := recondomain.Outcome{
			TransactionID: outcome.TransactionID,
			Status:        recondomain.TransactionFailed,
		}
		if outcome.Succeeded {
			reconOutcome.Status = recondomain.TransactionCompleted
			completedAt := outcome.CompletedAt
			if completedAt.IsZero() {
				completedAt = s.clock.Now()
			}
			reconOutcome.CompletedAt = completedAt
		}
		if outcome.GatewayRefundID != "" {
			reconOutcome.GatewayRefundID = &outcome.GatewayRefundID
		}
		if outcome.FailureReason != "" {
			reconOutcome.FailureReason = &outcome.FailureReason
		}

		finalized, err := s.recorder.FinalizeTx(ctx, tx, reconOutcome)
		if err != nil {
			return err
		}
		if !finalized {
			// Already settled, synchronously or by an earlier webhook.
			return nil
		}

		current, err := s.repo.FindByID(ctx, tx, refundID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return nil
		}
		if current.Status != refunddomain.StatusProcessing {
			return refunddomain.ErrInvalidTransition
		}

		update := refunddomain.StatusUpdate{
			ID:              current.ID,
			ExpectedVersion: current.Version,
		}
		if outcome.Succeeded {
			completed, err := s.recorder.SumCompleted(ctx, tx, refundID)
			if err != nil {
				return err
			}
			if completed.GreaterThan(current.Amount) {
				return recondomain.ErrOverRefund
			}
			update.NewStatus = refunddomain.StatusCompleted
			update.CompletedAt = &reconOutcome.CompletedAt
			update.PaidAt = &reconOutcome.CompletedAt
			eventType = events.EventRefundCompleted
		} else {
			update.NewStatus = refunddomain.StatusFailed
			if outcome.FailureReason != "" {
				reason := outcome.FailureReason
				update.FailureReason = &reason
			}
			eventType = events.EventRefundFailed
		}

		applied, err := s.repo.UpdateStatus(ctx, tx, update)
		if err != nil {
			return err
		}
		if !applied {
			return refunddomain.ErrStaleState
		}

		updated := *current
		updated.Status = update.NewStatus
		refund = &updated
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      eventType,
			DedupeKey: eventType + ":" + current.ID.String(),
			Payload:   refundPayload(&updated),
		})
	})
	if err != nil {
		return err
	}
	if refund == nil {
		return nil
	}

	metadata := map[string]any{
		"transaction_id": outcome.TransactionID.String(),
	}
	if outcome.GatewayRefundID != "" {
		metadata["gateway_refund_id"] = outcome.GatewayRefundID
	}
	if outcome.FailureReason != "" {
		metadata["failure_reason"] = outcome.FailureReason
	}
	s.audit(ctx, refund, "refund."+string(refund.Status), metadata)
	s.log.Info("refund settled",
		zap.String("refund_id", refund.ID.String()),
		zap.String("status", string(refund.Status)),
		zap.String("transaction_id", outcome.TransactionID.String()),
	)
	return nil
}

func (s *Service) GetByID(
	ctx context.Context,
	caller principal.Principal,
	id snowflake.ID,
) (*refunddomain.RefundRequest, error) {
	refund, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanView(caller, refund); err != nil {
		return nil, err
	}
	return refund, nil
}

func (s *Service) List(
	ctx context.Context,
	caller principal.Principal,
	filter refunddomain.ListFilter,
) (*refunddomain.ListResult, error) {
	// Non-admin callers only see their own scope regardless of the filter.
	switch {
	case caller.IsAdmin:
	case caller.IsCustomer():
		filter.CustomerID = caller.CustomerID
	case caller.VendorID != 0:
		filter.VendorID = caller.VendorID
	default:
		return nil, authz.ErrNotAllowed
	}

	limit := pagination.Pagination{PageSize: filter.PageSize}.Limit()
	afterID := snowflake.ID(pagination.DecodeToken(filter.PageToken))

	refunds, err := s.repo.List(ctx, s.db, filter, limit+1, afterID)
	if err != nil {
		return nil, err
	}

	result := &refunddomain.ListResult{Refunds: refunds}
	if len(refunds) > limit {
		result.Refunds = refunds[:limit]
		result.NextPageToken = pagination.EncodeToken(int64(refunds[limit-1].ID))
	}
	return result, nil
}

func (s *Service) resolveSource(
	ctx context.Context,
	orderID, saleID *snowflake.ID,
) (*sourcetxn.SourceTransaction, error) {
	hasOrder := orderID != nil && *orderID != 0
	hasSale := saleID != nil && *saleID != 0
	if hasOrder == hasSale {
		return nil, refunddomain.ErrInvalidSourceRef
	}
	if hasOrder {
		return s.sources.FindOrder(ctx, *orderID)
	}
	return s.sources.FindSale(ctx, *saleID)
}

func (s *Service) resolveGateway(
	ctx context.Context,
	refund *refunddomain.RefundRequest,
) (recondomain.Gateway, string, error) {
	switch refund.Method {
	case refunddomain.MethodManual:
		return recondomain.GatewayManual, "", nil
	case refunddomain.MethodBankTransfer:
		return recondomain.GatewayBankTransfer, "", nil
	case refunddomain.MethodGateway:
	default:
		return "", "", refunddomain.ErrInvalidMethod
	}

	src, err := s.resolveSource(ctx, refund.OrderID, refund.SaleID)
	if err != nil {
		return "", "", err
	}
	switch recondomain.Gateway(src.PaymentGateway) {
	case recondomain.GatewayRazorpay, recondomain.GatewayStripe, recondomain.GatewayPaytm:
		return recondomain.Gateway(src.PaymentGateway), src.GatewayPaymentID, nil
	default:
		return "", "", gatewaydomain.ErrGatewayNotFound
	}
}

func refundPayload(refund *refunddomain.RefundRequest) map[string]any {
	return events.RefundPayload{
		RefundID:   refund.ID.String(),
		Reference:  refund.Reference,
		CustomerID: refund.CustomerID.String(),
		Status:     string(refund.Status),
		Amount:     refund.Amount.StringFixed(2),
		Method:     string(refund.Method),
	}.ToMap()
}

func (s *Service) audit(
	ctx context.Context,
	refund *refunddomain.RefundRequest,
	action string,
	metadata map[string]any,
) {
	if s.auditSvc == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["reference"] = refund.Reference
	metadata["customer_id"] = refund.CustomerID.String()

	vendorID := refund.VendorID
	targetID := refund.ID.String()
	if err := s.auditSvc.AuditLog(
		ctx,
		&vendorID,
		string(auditdomain.ActorTypeUser),
		nil,
		action,
		"refund_request",
		&targetID,
		metadata,
	); err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}
}
