package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/vendora/refundcore/internal/principal"
)

// TransitionAction names a caller-requested lifecycle transition.
type TransitionAction string

const (
	ActionApprove TransitionAction = "approve"
	ActionReject  TransitionAction = "reject"
	ActionProcess TransitionAction = "process"
	ActionCancel  TransitionAction = "cancel"
)

// CreateRequest carries the inputs for a new refund request.
type CreateRequest struct {
	CustomerID snowflake.ID
	OrderID    *snowflake.ID
	SaleID     *snowflake.ID
	Amount     decimal.Decimal
	Method     RefundMethod
	Reason     string
}

// TransitionRequest carries a guarded lifecycle transition. ExpectedVersion
// is the version the caller last read; it is mandatory, and a mismatch
// fails with ErrStaleState.
type TransitionRequest struct {
	RefundID        snowflake.ID
	Action          TransitionAction
	ExpectedVersion int64
}

// ListFilter narrows refund listings.
type ListFilter struct {
	CustomerID snowflake.ID
	VendorID   snowflake.ID
	Status     RefundStatus
	Method     RefundMethod
	PageToken  string
	PageSize   int
}

// ListResult is one page of refunds plus the cursor for the next.
type ListResult struct {
	Refunds       []*RefundRequest
	NextPageToken string
}

// TransactionOutcome reports a confirmed money-movement result back into the
// lifecycle, either synchronously or from a gateway webhook.
type TransactionOutcome struct {
	TransactionID   snowflake.ID
	Succeeded       bool
	FailureReason   string
	GatewayRefundID string
	CompletedAt     time.Time
}

// Service is the refund lifecycle state machine.
type Service interface {
	Create(ctx context.Context, caller principal.Principal, req CreateRequest) (*RefundRequest, error)
	Transition(ctx context.Context, caller principal.Principal, req TransitionRequest) (*RefundRequest, error)
	GetByID(ctx context.Context, caller principal.Principal, id snowflake.ID) (*RefundRequest, error)
	List(ctx context.Context, caller principal.Principal, filter ListFilter) (*ListResult, error)

	// ApplyOutcome advances processing → completed/failed from a confirmed
	// transaction outcome. Idempotent: outcomes for transactions that are
	// already terminal are no-ops.
	ApplyOutcome(ctx context.Context, refundID snowflake.ID, outcome TransactionOutcome) error
}

// ParseAction validates a caller-supplied transition action.
func ParseAction(raw string) (TransitionAction, error) {
	switch TransitionAction(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	case ActionProcess:
		return ActionProcess, nil
	case ActionCancel:
		return ActionCancel, nil
	default:
		return "", ErrInvalidTransition
	}
}

var (
	ErrInvalidSourceRef    = errors.New("invalid_source_ref")
	ErrInvalidMethod       = errors.New("invalid_method")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrAmountExceedsSource = errors.New("amount_exceeds_refundable_remainder")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrVersionRequired     = errors.New("expected_version_required")
	ErrStaleState          = errors.New("stale_state")
	ErrNotFound            = errors.New("refund_not_found")
	ErrDuplicateReference  = errors.New("duplicate_reference")
)
