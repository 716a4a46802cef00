package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service writes immutable audit entries. Writers never fail the business
// operation when the audit insert fails; the error is logged and surfaced to
// the caller for visibility only.
type Service interface {
	AuditLog(
		ctx context.Context,
		vendorID *snowflake.ID,
		actorType string,
		actorID *string,
		action string,
		targetType string,
		targetID *string,
		metadata map[string]any,
	) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidAction     = errors.New("invalid_action")
	ErrInvalidTargetType = errors.New("invalid_target_type")
)
