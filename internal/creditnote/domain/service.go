package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// IssueRequest creates a credit note outside the refund flow (goodwill
// credit issued by an operator).
type IssueRequest struct {
	CustomerID snowflake.ID
	Amount     decimal.Decimal
}

// Service is the store-credit ledger: issuance plus atomic consumption.
// Consume is the only mutator exposed outside the refund core and must be
// safe under arbitrary concurrent checkout traffic.
type Service interface {
	// IssueFromRefund materializes the credit note for a completed
	// credit_note-method refund. Replays return the already-issued note
	// with ErrDuplicateIssuance.
	IssueFromRefund(ctx context.Context, refundID, customerID snowflake.ID, amount decimal.Decimal) (*CreditNote, error)

	// Issue creates a manually issued credit note.
	Issue(ctx context.Context, req IssueRequest) (*CreditNote, error)

	// Consume atomically decrements the remaining balance and returns the
	// balance left on the note.
	Consume(ctx context.Context, creditNoteID snowflake.ID, amount decimal.Decimal) (decimal.Decimal, error)

	// Balance sums active remaining amounts for one customer.
	Balance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error)

	GetByID(ctx context.Context, id snowflake.ID) (*CreditNote, error)

	// SweepExpired transitions active notes past their expiry to expired.
	// Returns how many notes were swept.
	SweepExpired(ctx context.Context) (int, error)
}

var (
	ErrNotFound            = errors.New("credit_note_not_found")
	ErrDuplicateIssuance   = errors.New("duplicate_issuance")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInactiveCreditNote  = errors.New("inactive_credit_note")
	ErrExpiredCreditNote   = errors.New("expired_credit_note")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidCustomer     = errors.New("invalid_customer")
)
