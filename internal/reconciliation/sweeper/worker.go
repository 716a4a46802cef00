package sweeper

import (
	"context"
	"time"

	creditnotedomain "github.com/vendora/refundcore/internal/creditnote/domain"
	recondomain "github.com/vendora/refundcore/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	CreditNotes creditnotedomain.Service
	Recorder    recondomain.Recorder
	Config      Config `optional:"true"`
}

// Worker periodically expires due credit notes and surfaces transactions
// stuck processing past the stale age.
type Worker struct {
	log         *zap.Logger
	creditNotes creditnotedomain.Service
	recorder    recondomain.Recorder
	cfg         Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log:         p.Log.Named("reconciliation.sweeper"),
		creditNotes: p.CreditNotes,
		recorder:    p.Recorder,
		cfg:         p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("maintenance run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	swept, err := w.creditNotes.SweepExpired(runCtx)
	if err != nil {
		return err
	}
	if swept > 0 {
		w.log.Info("credit notes expired", zap.Int("count", swept))
	}

	stale, err := w.recorder.StaleReport(runCtx, w.cfg.ReportLimit)
	if err != nil {
		return err
	}
	for _, txn := range stale {
		w.log.Warn("stale refund transaction",
			zap.String("transaction_id", txn.TransactionID.String()),
			zap.String("refund_reference", txn.RefundReference),
			zap.String("gateway", string(txn.Gateway)),
			zap.String("age", txn.Age),
		)
	}
	return nil
}
