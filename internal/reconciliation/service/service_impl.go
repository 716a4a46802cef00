package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/vendora/refundcore/internal/clock"
	"github.com/vendora/refundcore/internal/config"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  recondomain.Repository
	Cfg   config.Config
	Clock clock.Clock
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     recondomain.Repository
	staleAge time.Duration
	clock    clock.Clock
}

func NewService(p Params) recondomain.Recorder {
	staleAge := p.Cfg.StaleTransactionAge
	if staleAge <= 0 {
		staleAge = 24 * time.Hour
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reconciliation.service"),
		repo:     p.Repo,
		staleAge: staleAge,
		clock:    p.Clock,
	}
}

func (s *Service) RecordAttemptTx(ctx context.Context, tx *gorm.DB, txn *recondomain.RefundTransaction) error {
	inserted, err := s.repo.Insert(ctx, tx, txn)
	if err != nil {
		return err
	}
	if !inserted {
		return recondomain.ErrTransactionInFlight
	}
	s.log.Info("refund transaction recorded",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("refund_id", txn.RefundID.String()),
		zap.String("gateway", string(txn.Gateway)),
		zap.Int("attempt", txn.Attempt),
	)
	return nil
}

func (s *Service) FinalizeTx(ctx context.Context, tx *gorm.DB, outcome recondomain.Outcome) (bool, error) {
	finalized, err := s.repo.Finalize(ctx, tx, outcome)
	if err != nil {
		return false, err
	}
	if !finalized {
		return false, nil
	}
	s.log.Info("refund transaction finalized",
		zap.String("transaction_id", outcome.TransactionID.String()),
		zap.String("status", string(outcome.Status)),
	)
	return true, nil
}

func (s *Service) FindByIdempotencyKey(ctx context.Context, key string) (*recondomain.RefundTransaction, error) {
	return s.repo.FindByIdempotencyKey(ctx, s.db, key)
}

func (s *Service) ListByRefund(ctx context.Context, refundID snowflake.ID) ([]*recondomain.RefundTransaction, error) {
	return s.repo.ListByRefund(ctx, s.db, refundID)
}

func (s *Service) SumCompleted(ctx context.Context, tx *gorm.DB, refundID snowflake.ID) (decimal.Decimal, error) {
	return s.repo.SumCompleted(ctx, tx, refundID)
}

func (s *Service) StaleReport(ctx context.Context, limit int) ([]*recondomain.StaleTransaction, error) {
	now := s.clock.Now()
	txns, err := s.repo.ListStale(ctx, s.db, now.Add(-s.staleAge), limit)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return []*recondomain.StaleTransaction{}, nil
	}

	refs, err := s.refundReferences(ctx, txns)
	if err != nil {
		return nil, err
	}

	report := make([]*recondomain.StaleTransaction, 0, len(txns))
	for _, txn := range txns {
		report = append(report, &recondomain.StaleTransaction{
			TransactionID:   txn.ID,
			RefundID:        txn.RefundID,
			RefundReference: refs[txn.RefundID],
			Gateway:         txn.Gateway,
			Amount:          txn.Amount,
			IdempotencyKey:  txn.IdempotencyKey,
			ProcessedAt:     txn.ProcessedAt,
			Age:             now.Sub(txn.ProcessedAt).Round(time.Minute).String(),
		})
	}
	return report, nil
}

func (s *Service) refundReferences(ctx context.Context, txns []*recondomain.RefundTransaction) (map[snowflake.ID]string, error) {
	ids := make([]snowflake.ID, 0, len(txns))
	seen := make(map[snowflake.ID]struct{}, len(txns))
	for _, txn := range txns {
		if _, ok := seen[txn.RefundID]; ok {
			continue
		}
		seen[txn.RefundID] = struct{}{}
		ids = append(ids, txn.RefundID)
	}

	var rows []struct {
		ID        snowflake.ID
		Reference string
	}
	err := s.db.WithContext(ctx).
		Table("refund_requests").
		Select("id, reference").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	refs := make(map[snowflake.ID]string, len(rows))
	for _, row := range rows {
		refs[row.ID] = row.Reference
	}
	return refs, nil
}
