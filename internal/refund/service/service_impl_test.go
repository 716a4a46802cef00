package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	auditrepo "github.com/vendora/refundcore/internal/audit/repository"
	auditsvc "github.com/vendora/refundcore/internal/audit/service"
	"github.com/vendora/refundcore/internal/authz"
	"github.com/vendora/refundcore/internal/clock"
	"github.com/vendora/refundcore/internal/config"
	creditnoterepo "github.com/vendora/refundcore/internal/creditnote/repository"
	creditnotesvc "github.com/vendora/refundcore/internal/creditnote/service"
	"github.com/vendora/refundcore/internal/events"
	"github.com/vendora/refundcore/internal/gateway/adapters"
	gatewaydomain "github.com/vendora/refundcore/internal/gateway/domain"
	"github.com/vendora/refundcore/internal/gateway/executor"
	"github.com/vendora/refundcore/internal/principal"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	reconrepo "github.com/vendora/refundcore/internal/reconciliation/repository"
	reconsvc "github.com/vendora/refundcore/internal/reconciliation/service"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	refundrepo "github.com/vendora/refundcore/internal/refund/repository"
	"github.com/vendora/refundcore/internal/sourcetxn"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubCall struct {
	result *gatewaydomain.ExecuteResult
	err    error
}

// stubGateway plays back scripted attempt outcomes.
type stubGateway struct {
	name  recondomain.Gateway
	calls []stubCall
	seen  []gatewaydomain.ExecuteRequest
}

func (g *stubGateway) Name() recondomain.Gateway { return g.name }

func (g *stubGateway) Execute(_ context.Context, req gatewaydomain.ExecuteRequest) (*gatewaydomain.ExecuteResult, error) {
	g.seen = append(g.seen, req)
	if len(g.calls) == 0 {
		return nil, gatewaydomain.ErrPermanent
	}
	call := g.calls[0]
	g.calls = g.calls[1:]
	return call.result, call.err
}

type fixture struct {
	db      *gorm.DB
	svc     refunddomain.Service
	gateway *stubGateway
	clock   clock.FixedClock
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT PRIMARY KEY,
			vendor_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			paid_total NUMERIC,
			paid_at TIMESTAMP,
			payment_gateway TEXT,
			gateway_payment_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS pos_sales (
			id BIGINT PRIMARY KEY,
			vendor_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			paid_total NUMERIC,
			paid_at TIMESTAMP,
			payment_gateway TEXT,
			gateway_payment_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS refund_requests (
			id BIGINT PRIMARY KEY,
			vendor_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			order_id BIGINT,
			sale_id BIGINT,
			amount NUMERIC NOT NULL,
			method TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			reference TEXT NOT NULL UNIQUE,
			failure_reason TEXT,
			requested_at TIMESTAMP NOT NULL,
			approved_at TIMESTAMP,
			processed_at TIMESTAMP,
			completed_at TIMESTAMP,
			paid_at TIMESTAMP,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS refund_transactions (
			id BIGINT PRIMARY KEY,
			refund_id BIGINT NOT NULL,
			idempotency_key TEXT NOT NULL UNIQUE,
			gateway TEXT NOT NULL,
			attempt INT NOT NULL DEFAULT 1,
			status TEXT NOT NULL,
			amount NUMERIC NOT NULL,
			gateway_transaction_id TEXT,
			gateway_refund_id TEXT,
			gateway_response JSON,
			failure_reason TEXT,
			processed_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS credit_notes (
			id BIGINT PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			refund_id BIGINT UNIQUE,
			amount NUMERIC NOT NULL,
			remaining_amount NUMERIC NOT NULL,
			status TEXT NOT NULL,
			reference TEXT NOT NULL UNIQUE,
			issued_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS refund_events (
			id BIGINT PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload JSON NOT NULL DEFAULT '{}',
			dedupe_key TEXT UNIQUE,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGINT PRIMARY KEY,
			vendor_id BIGINT,
			actor_type TEXT NOT NULL,
			actor_id TEXT,
			action TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT,
			metadata JSON NOT NULL DEFAULT '{}',
			ip_address TEXT,
			user_agent TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newFixture(t *testing.T, gatewayCalls []stubCall) *fixture {
	t.Helper()
	db := setupTestDB(t)
	log := zap.NewNop()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		Currency:              "INR",
		VendorApprovalCeiling: "10000.00",
		CreditNoteValidity:    365 * 24 * time.Hour,
		GatewayRetryAttempts:  3,
		GatewayRetryBackoff:   time.Millisecond,
		GatewayTimeout:        time.Second,
		StaleTransactionAge:   24 * time.Hour,
	}
	fixed := clock.FixedClock{At: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	outbox := events.NewOutbox(db, node)

	gw := &stubGateway{name: recondomain.GatewayStripe, calls: gatewayCalls}
	registry := adapters.NewRegistry(gw)

	recorder := reconsvc.NewService(reconsvc.Params{
		DB:    db,
		Log:   log,
		Repo:  reconrepo.Provide(),
		Cfg:   cfg,
		Clock: fixed,
	})
	creditNotes := creditnotesvc.NewService(creditnotesvc.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Repo:   creditnoterepo.Provide(),
		Cfg:    cfg,
		Clock:  fixed,
		Outbox: outbox,
	})
	auditService := auditsvc.NewService(auditsvc.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	svc := NewService(Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  refundrepo.Provide(),
		Sources: sourcetxn.NewLookup(sourcetxn.Params{
			DB:  db,
			Log: log,
		}),
		Gate:     authz.NewGate(cfg),
		Recorder: recorder,
		Executor: executor.New(executor.Params{
			Log:      log,
			Cfg:      cfg,
			Registry: registry,
		}),
		CreditNotes: creditNotes,
		AuditSvc:    auditService,
		Outbox:      outbox,
		Cfg:         cfg,
		Clock:       fixed,
	})

	return &fixture{db: db, svc: svc, gateway: gw, clock: fixed}
}

func (f *fixture) insertOrder(t *testing.T, id, vendorID, customerID int64, paidTotal string) {
	t.Helper()
	err := f.db.Exec(
		`INSERT INTO orders (id, vendor_id, customer_id, paid_total, paid_at, payment_gateway, gateway_payment_id)
		 VALUES (?, ?, ?, ?, ?, 'stripe', 'pi_test_123')`,
		id, vendorID, customerID, paidTotal, f.clock.Now(),
	).Error
	require.NoError(t, err)
}

func orderRef(id int64) *snowflake.ID {
	sid := snowflake.ID(id)
	return &sid
}

var (
	customer = principal.Principal{ID: 42, CustomerID: 42}
	manager  = principal.Principal{
		ID:           7,
		VendorID:     1,
		Capabilities: []string{principal.CapabilityVendorManager},
	}
	finance = principal.Principal{
		ID:           9,
		VendorID:     1,
		Capabilities: []string{principal.CapabilityFinance},
	}
	admin = principal.Principal{ID: 1, IsAdmin: true}
)

func createRefund(t *testing.T, f *fixture, method refunddomain.RefundMethod, amount string) *refunddomain.RefundRequest {
	t.Helper()
	parsed, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	refund, err := f.svc.Create(context.Background(), customer, refunddomain.CreateRequest{
		OrderID: orderRef(100),
		Amount:  parsed,
		Method:  method,
		Reason:  "damaged item",
	})
	require.NoError(t, err)
	return refund
}

func transition(t *testing.T, f *fixture, caller principal.Principal, id snowflake.ID, action refunddomain.TransitionAction, version int64) (*refunddomain.RefundRequest, error) {
	t.Helper()
	return f.svc.Transition(context.Background(), caller, refunddomain.TransitionRequest{
		RefundID:        id,
		Action:          action,
		ExpectedVersion: version,
	})
}

func TestGatewayRefundHappyPath(t *testing.T) {
	f := newFixture(t, []stubCall{
		{result: &gatewaydomain.ExecuteResult{
			Status:          recondomain.TransactionCompleted,
			GatewayRefundID: "re_abc",
		}},
	})
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodGateway, "200.00")
	require.Equal(t, refunddomain.StatusPending, refund.Status)
	require.Equal(t, int64(1), refund.Version)
	require.NotEmpty(t, refund.Reference)

	approved, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	done, err := transition(t, f, finance, refund.ID, refunddomain.ActionProcess, approved.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.PaidAt)

	require.Len(t, f.gateway.seen, 1)
	require.Equal(t, "pi_test_123", f.gateway.seen[0].GatewayPaymentID)
	require.Equal(t, refund.Reference+"-1", f.gateway.seen[0].IdempotencyKey)

	var txnCount int64
	require.NoError(t, f.db.Table("refund_transactions").
		Where("refund_id = ? AND status = ?", refund.ID, recondomain.TransactionCompleted).
		Count(&txnCount).Error)
	require.Equal(t, int64(1), txnCount)

	var eventCount int64
	require.NoError(t, f.db.Table("refund_events").
		Where("event_type = ?", events.EventRefundCompleted).
		Count(&eventCount).Error)
	require.Equal(t, int64(1), eventCount)
}

func TestGatewayRefundTransientThenSuccess(t *testing.T) {
	f := newFixture(t, []stubCall{
		{err: gatewaydomain.ErrTransient},
		{result: &gatewaydomain.ExecuteResult{
			Status:          recondomain.TransactionCompleted,
			GatewayRefundID: "re_retry",
		}},
	})
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodGateway, "100.00")
	approved, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.NoError(t, err)

	done, err := transition(t, f, finance, refund.ID, refunddomain.ActionProcess, approved.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusCompleted, done.Status)

	// One failed row, one completed row, distinct idempotency keys.
	var rows []struct {
		Status         string
		IdempotencyKey string
		Attempt        int
	}
	require.NoError(t, f.db.Table("refund_transactions").
		Where("refund_id = ?", refund.ID).
		Order("attempt ASC").
		Scan(&rows).Error)
	require.Len(t, rows, 2)
	require.Equal(t, string(recondomain.TransactionFailed), rows[0].Status)
	require.Equal(t, string(recondomain.TransactionCompleted), rows[1].Status)
	require.NotEqual(t, rows[0].IdempotencyKey, rows[1].IdempotencyKey)
}

func TestGatewayRefundBudgetExhausted(t *testing.T) {
	f := newFixture(t, []stubCall{
		{err: gatewaydomain.ErrTransient},
		{err: gatewaydomain.ErrTransient},
		{err: gatewaydomain.ErrTransient},
	})
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodGateway, "100.00")
	approved, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.NoError(t, err)

	done, err := transition(t, f, finance, refund.ID, refunddomain.ActionProcess, approved.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusFailed, done.Status)
	require.NotNil(t, done.FailureReason)

	var txnCount int64
	require.NoError(t, f.db.Table("refund_transactions").
		Where("refund_id = ? AND status = ?", refund.ID, recondomain.TransactionFailed).
		Count(&txnCount).Error)
	require.Equal(t, int64(3), txnCount)
}

func TestGatewayRefundPermanentFailureStopsEarly(t *testing.T) {
	f := newFixture(t, []stubCall{
		{err: gatewaydomain.ErrPermanent},
	})
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodGateway, "100.00")
	approved, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.NoError(t, err)

	done, err := transition(t, f, finance, refund.ID, refunddomain.ActionProcess, approved.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusFailed, done.Status)
	require.Len(t, f.gateway.seen, 1)
}

func TestAsyncGatewaySettlesByOutcome(t *testing.T) {
	f := newFixture(t, []stubCall{
		{result: &gatewaydomain.ExecuteResult{
			Status:          recondomain.TransactionProcessing,
			GatewayRefundID: "rfnd_async",
		}},
	})
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodGateway, "100.00")
	approved, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.NoError(t, err)

	processing, err := transition(t, f, finance, refund.ID, refunddomain.ActionProcess, approved.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusProcessing, processing.Status)

	var txn struct{ ID snowflake.ID }
	require.NoError(t, f.db.Table("refund_transactions").
		Where("refund_id = ?", refund.ID).
		Scan(&txn).Error)

	outcome := refunddomain.TransactionOutcome{
		TransactionID:   txn.ID,
		Succeeded:       true,
		GatewayRefundID: "rfnd_async",
		CompletedAt:     f.clock.Now(),
	}
	require.NoError(t, f.svc.ApplyOutcome(context.Background(), refund.ID, outcome))

	done, err := f.svc.GetByID(context.Background(), admin, refund.ID)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusCompleted, done.Status)

	// Replay is a no-op.
	require.NoError(t, f.svc.ApplyOutcome(context.Background(), refund.ID, outcome))
	again, err := f.svc.GetByID(context.Background(), admin, refund.ID)
	require.NoError(t, err)
	require.Equal(t, done.Version, again.Version)
}

func TestCreditNoteRefundIssuesCredit(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodCreditNote, "150.00")
	approved, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.NoError(t, err)

	done, err := transition(t, f, finance, refund.ID, refunddomain.ActionProcess, approved.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusCompleted, done.Status)

	var note struct {
		CustomerID      int64
		RemainingAmount decimal.Decimal
		Status          string
	}
	require.NoError(t, f.db.Table("credit_notes").
		Where("refund_id = ?", refund.ID).
		Scan(&note).Error)
	require.Equal(t, int64(42), note.CustomerID)
	require.Equal(t, "150.00", note.RemainingAmount.StringFixed(2))
	require.Equal(t, "active", note.Status)
	require.Empty(t, f.gateway.seen)
}

func TestCreateRejectsOverRefundableRemainder(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")

	createRefund(t, f, refunddomain.MethodCreditNote, "400.00")

	amount := decimal.NewFromInt(200)
	_, err := f.svc.Create(context.Background(), customer, refunddomain.CreateRequest{
		OrderID: orderRef(100),
		Amount:  amount,
		Method:  refunddomain.MethodCreditNote,
		Reason:  "second claim",
	})
	require.ErrorIs(t, err, refunddomain.ErrAmountExceedsSource)
}

func TestConcurrentCreatesShareTheRemainder(t *testing.T) {
	f := newFixture(t, nil)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	f.insertOrder(t, 100, 1, 42, "500.00")

	amount := decimal.NewFromInt(400)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(context.Background(), customer, refunddomain.CreateRequest{
				OrderID: orderRef(100),
				Amount:  amount,
				Method:  refunddomain.MethodCreditNote,
				Reason:  "duplicate claim race",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, refunddomain.ErrAmountExceedsSource)
	}
	require.Equal(t, 1, succeeded)
}

func TestCreateRequiresExactlyOneSource(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")

	_, err := f.svc.Create(context.Background(), customer, refunddomain.CreateRequest{
		Amount: decimal.NewFromInt(10),
		Method: refunddomain.MethodCreditNote,
	})
	require.ErrorIs(t, err, refunddomain.ErrInvalidSourceRef)

	sale := snowflake.ID(200)
	_, err = f.svc.Create(context.Background(), customer, refunddomain.CreateRequest{
		OrderID: orderRef(100),
		SaleID:  &sale,
		Amount:  decimal.NewFromInt(10),
		Method:  refunddomain.MethodCreditNote,
	})
	require.ErrorIs(t, err, refunddomain.ErrInvalidSourceRef)
}

func TestCreateGatewayMethodNeedsPaymentRef(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.db.Exec(
		`INSERT INTO orders (id, vendor_id, customer_id, paid_total, paid_at, payment_gateway, gateway_payment_id)
		 VALUES (101, 1, 42, '99.00', ?, NULL, NULL)`,
		f.clock.Now(),
	).Error)

	_, err := f.svc.Create(context.Background(), customer, refunddomain.CreateRequest{
		OrderID: orderRef(101),
		Amount:  decimal.NewFromInt(10),
		Method:  refunddomain.MethodGateway,
	})
	require.ErrorIs(t, err, refunddomain.ErrInvalidMethod)
}

func TestStaleVersionLosesRace(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodCreditNote, "100.00")

	_, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.NoError(t, err)

	// A second caller still holding version 1.
	_, err = transition(t, f, manager, refund.ID, refunddomain.ActionReject, refund.Version)
	require.ErrorIs(t, err, refunddomain.ErrStaleState)
}

func TestInvalidTransitionsRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodCreditNote, "100.00")

	_, err := transition(t, f, finance, refund.ID, refunddomain.ActionProcess, refund.Version)
	require.ErrorIs(t, err, refunddomain.ErrInvalidTransition)

	rejected, err := transition(t, f, manager, refund.ID, refunddomain.ActionReject, refund.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusRejected, rejected.Status)

	_, err = transition(t, f, manager, refund.ID, refunddomain.ActionApprove, rejected.Version)
	require.ErrorIs(t, err, refunddomain.ErrInvalidTransition)

	_, err = transition(t, f, admin, refund.ID, refunddomain.ActionCancel, rejected.Version)
	require.ErrorIs(t, err, refunddomain.ErrInvalidTransition)
}

func TestRejectFromApproved(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodCreditNote, "100.00")
	approved, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.NoError(t, err)

	rejected, err := transition(t, f, admin, refund.ID, refunddomain.ActionReject, approved.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusRejected, rejected.Status)
}

func TestTransitionRequiresExpectedVersion(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodCreditNote, "100.00")

	_, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, 0)
	require.ErrorIs(t, err, refunddomain.ErrVersionRequired)

	_, err = transition(t, f, manager, refund.ID, refunddomain.ActionApprove, -1)
	require.ErrorIs(t, err, refunddomain.ErrVersionRequired)

	still, err := f.svc.GetByID(context.Background(), admin, refund.ID)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusPending, still.Status)
}

func TestApprovalCeilingEnforced(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "50000.00")

	refund := createRefund(t, f, refunddomain.MethodCreditNote, "10000.01")

	_, err := transition(t, f, manager, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.ErrorIs(t, err, authz.ErrApprovalCeilingExceeded)

	// Reject carries the same authority as approve, ceiling included.
	_, err = transition(t, f, manager, refund.ID, refunddomain.ActionReject, refund.Version)
	require.ErrorIs(t, err, authz.ErrApprovalCeilingExceeded)

	approved, err := transition(t, f, admin, refund.ID, refunddomain.ActionApprove, refund.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusApproved, approved.Status)
}

func TestCancelFromPendingAndApproved(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")

	first := createRefund(t, f, refunddomain.MethodCreditNote, "50.00")
	cancelled, err := transition(t, f, customer, first.ID, refunddomain.ActionCancel, first.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusCancelled, cancelled.Status)

	second := createRefund(t, f, refunddomain.MethodCreditNote, "50.00")
	approved, err := transition(t, f, manager, second.ID, refunddomain.ActionApprove, second.Version)
	require.NoError(t, err)
	cancelled, err = transition(t, f, customer, second.ID, refunddomain.ActionCancel, approved.Version)
	require.NoError(t, err)
	require.Equal(t, refunddomain.StatusCancelled, cancelled.Status)
}

func TestListScopesToCaller(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")
	f.insertOrder(t, 200, 2, 43, "500.00")

	createRefund(t, f, refunddomain.MethodCreditNote, "50.00")

	other := principal.Principal{ID: 43, CustomerID: 43}
	_, err := f.svc.Create(context.Background(), other, refunddomain.CreateRequest{
		OrderID: orderRef(200),
		Amount:  decimal.NewFromInt(25),
		Method:  refunddomain.MethodCreditNote,
	})
	require.NoError(t, err)

	mine, err := f.svc.List(context.Background(), customer, refunddomain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, mine.Refunds, 1)
	require.Equal(t, snowflake.ID(42), mine.Refunds[0].CustomerID)

	vendorView, err := f.svc.List(context.Background(), manager, refunddomain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, vendorView.Refunds, 1)
	require.Equal(t, snowflake.ID(1), vendorView.Refunds[0].VendorID)

	all, err := f.svc.List(context.Background(), admin, refunddomain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all.Refunds, 2)
}

func TestGetByIDEnforcesViewScope(t *testing.T) {
	f := newFixture(t, nil)
	f.insertOrder(t, 100, 1, 42, "500.00")

	refund := createRefund(t, f, refunddomain.MethodCreditNote, "50.00")

	stranger := principal.Principal{ID: 99, CustomerID: 99}
	_, err := f.svc.GetByID(context.Background(), stranger, refund.ID)
	require.ErrorIs(t, err, authz.ErrNotAllowed)

	otherVendor := principal.Principal{ID: 98, VendorID: 9}
	_, err = f.svc.GetByID(context.Background(), otherVendor, refund.ID)
	require.ErrorIs(t, err, authz.ErrNotAllowed)
}
