package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/vendora/refundcore/internal/clock"
	"github.com/vendora/refundcore/internal/config"
	creditnotedomain "github.com/vendora/refundcore/internal/creditnote/domain"
	"github.com/vendora/refundcore/internal/events"
	"github.com/vendora/refundcore/internal/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   creditnotedomain.Repository
	Cfg    config.Config
	Clock  clock.Clock
	Outbox *events.Outbox
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     creditnotedomain.Repository
	validity time.Duration
	clock    clock.Clock
	outbox   *events.Outbox
}

func NewService(p Params) creditnotedomain.Service {
	validity := p.Cfg.CreditNoteValidity
	if validity <= 0 {
		validity = 365 * 24 * time.Hour
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("creditnote.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		validity: validity,
		clock:    p.Clock,
		outbox:   p.Outbox,
	}
}

func (s *Service) IssueFromRefund(
	ctx context.Context,
	refundID, customerID snowflake.ID,
	amount decimal.Decimal,
) (*creditnotedomain.CreditNote, error) {
	if refundID == 0 {
		return nil, creditnotedomain.ErrNotFound
	}
	if customerID == 0 {
		return nil, creditnotedomain.ErrInvalidCustomer
	}
	amount, err := money.Normalize(amount)
	if err != nil {
		return nil, creditnotedomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	note := &creditnotedomain.CreditNote{
		ID:              s.genID.Generate(),
		CustomerID:      customerID,
		RefundID:        &refundID,
		Amount:          amount,
		RemainingAmount: amount,
		Status:          creditnotedomain.StatusActive,
		Reference:       creditnotedomain.NewReference(now),
		IssuedAt:        now,
		ExpiresAt:       now.Add(s.validity),
	}

	var issued *creditnotedomain.CreditNote
	var issueErr error
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.Insert(ctx, tx, note)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := s.repo.FindByRefundID(ctx, tx, refundID)
			if err != nil {
				return err
			}
			issued = existing
			issueErr = creditnotedomain.ErrDuplicateIssuance
			return nil
		}

		issued = note
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventCreditNoteIssued,
			DedupeKey: "credit_note.issued:" + refundID.String(),
			Payload: events.CreditNotePayload{
				CreditNoteID: note.ID.String(),
				Reference:    note.Reference,
				CustomerID:   note.CustomerID.String(),
				Remaining:    note.RemainingAmount.StringFixed(2),
			}.ToMap(),
		})
	})
	if err != nil {
		return nil, err
	}
	if issueErr == nil {
		s.log.Info("credit note issued",
			zap.String("credit_note_id", issued.ID.String()),
			zap.String("refund_id", refundID.String()),
			zap.String("amount", amount.StringFixed(2)),
		)
	}
	return issued, issueErr
}

func (s *Service) Issue(ctx context.Context, req creditnotedomain.IssueRequest) (*creditnotedomain.CreditNote, error) {
	if req.CustomerID == 0 {
		return nil, creditnotedomain.ErrInvalidCustomer
	}
	amount, err := money.Normalize(req.Amount)
	if err != nil {
		return nil, creditnotedomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	note := &creditnotedomain.CreditNote{
		ID:              s.genID.Generate(),
		CustomerID:      req.CustomerID,
		Amount:          amount,
		RemainingAmount: amount,
		Status:          creditnotedomain.StatusActive,
		Reference:       creditnotedomain.NewReference(now),
		IssuedAt:        now,
		ExpiresAt:       now.Add(s.validity),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.Insert(ctx, tx, note)
		if err != nil {
			return err
		}
		if !inserted {
			return creditnotedomain.ErrDuplicateIssuance
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventCreditNoteIssued,
			DedupeKey: "credit_note.issued:" + note.ID.String(),
			Payload: events.CreditNotePayload{
				CreditNoteID: note.ID.String(),
				Reference:    note.Reference,
				CustomerID:   note.CustomerID.String(),
				Remaining:    note.RemainingAmount.StringFixed(2),
			}.ToMap(),
		})
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) Consume(
	ctx context.Context,
	creditNoteID snowflake.ID,
	amount decimal.Decimal,
) (decimal.Decimal, error) {
	amount, err := money.Normalize(amount)
	if err != nil {
		return decimal.Zero, creditnotedomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	var remaining decimal.Decimal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumed, err := s.repo.Consume(ctx, tx, creditNoteID, amount, now)
		if err != nil {
			return err
		}
		if !consumed {
			return s.diagnoseConsumeFailure(ctx, tx, creditNoteID, amount, now)
		}

		note, err := s.repo.FindByID(ctx, tx, creditNoteID)
		if err != nil {
			return err
		}
		remaining = note.RemainingAmount

		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventCreditNoteConsumed,
			Payload: events.CreditNotePayload{
				CreditNoteID: note.ID.String(),
				Reference:    note.Reference,
				CustomerID:   note.CustomerID.String(),
				Remaining:    remaining.StringFixed(2),
			}.ToMap(),
		})
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.log.Info("credit note consumed",
		zap.String("credit_note_id", creditNoteID.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("remaining", remaining.StringFixed(2)),
	)
	return remaining, nil
}

// diagnoseConsumeFailure maps a failed guarded decrement onto the precise
// ledger error. Runs inside the same transaction as the attempt.
func (s *Service) diagnoseConsumeFailure(
	ctx context.Context,
	tx *gorm.DB,
	creditNoteID snowflake.ID,
	amount decimal.Decimal,
	now time.Time,
) error {
	note, err := s.repo.FindByID(ctx, tx, creditNoteID)
	if err != nil {
		return err
	}
	switch {
	case note.Status == creditnotedomain.StatusExpired:
		return creditnotedomain.ErrExpiredCreditNote
	case note.Status != creditnotedomain.StatusActive:
		return creditnotedomain.ErrInactiveCreditNote
	case !note.ExpiresAt.After(now):
		return creditnotedomain.ErrExpiredCreditNote
	case note.RemainingAmount.LessThan(amount):
		return creditnotedomain.ErrInsufficientBalance
	default:
		return creditnotedomain.ErrInsufficientBalance
	}
}

func (s *Service) Balance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error) {
	if customerID == 0 {
		return decimal.Zero, creditnotedomain.ErrInvalidCustomer
	}
	return s.repo.SumActiveByCustomer(ctx, s.db, customerID, s.clock.Now())
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*creditnotedomain.CreditNote, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	var swept []*creditnotedomain.CreditNote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		due, err := s.repo.ExpireDue(ctx, tx, now)
		if err != nil {
			return err
		}
		swept = due
		for _, note := range due {
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				Type:      events.EventCreditNoteExpired,
				DedupeKey: "credit_note.expired:" + note.ID.String(),
				Payload: events.CreditNotePayload{
					CreditNoteID: note.ID.String(),
					Reference:    note.Reference,
					CustomerID:   note.CustomerID.String(),
					Remaining:    note.RemainingAmount.StringFixed(2),
				}.ToMap(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(swept) > 0 {
		s.log.Info("expired credit notes swept", zap.Int("count", len(swept)))
	}
	return len(swept), nil
}
