// Package authz decides who may act on a refund. Every check is a pure
// function over the caller identity and the refund in question; nothing here
// touches the database or ambient session state.
package authz

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vendora/refundcore/internal/config"
	"github.com/vendora/refundcore/internal/principal"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	"github.com/vendora/refundcore/internal/sourcetxn"
)

var (
	ErrNotAllowed              = errors.New("not_allowed")
	ErrApprovalCeilingExceeded = errors.New("approval_ceiling_exceeded")
)

// Gate holds the vendor approval ceiling. Admins bypass the ceiling; vendor
// managers may only approve refunds at or below it.
type Gate struct {
	ceiling decimal.Decimal
}

func NewGate(cfg config.Config) *Gate {
	return &Gate{ceiling: cfg.ApprovalCeiling()}
}

// CanCreate allows the owning customer, a manager of the selling vendor, or
// an admin to raise a refund against the source transaction.
func (g *Gate) CanCreate(caller principal.Principal, src *sourcetxn.SourceTransaction) error {
	if caller.IsAdmin {
		return nil
	}
	if caller.IsCustomer() && caller.CustomerID == src.CustomerID {
		return nil
	}
	if caller.Has(principal.CapabilityVendorManager) && caller.SameVendor(src.VendorID) {
		return nil
	}
	return ErrNotAllowed
}

// CanView allows the owning customer, staff of the selling vendor, or an
// admin to read a refund.
func (g *Gate) CanView(caller principal.Principal, refund *refunddomain.RefundRequest) error {
	if caller.IsAdmin {
		return nil
	}
	if caller.IsCustomer() && caller.CustomerID == refund.CustomerID {
		return nil
	}
	if caller.SameVendor(refund.VendorID) {
		return nil
	}
	return ErrNotAllowed
}

// CanApprove allows admins unconditionally and vendor managers of the
// selling vendor up to the approval ceiling. Customers never approve.
func (g *Gate) CanApprove(caller principal.Principal, refund *refunddomain.RefundRequest) error {
	if caller.IsAdmin {
		return nil
	}
	if !caller.Has(principal.CapabilityVendorManager) || !caller.SameVendor(refund.VendorID) {
		return ErrNotAllowed
	}
	if refund.Amount.GreaterThan(g.ceiling) {
		return ErrApprovalCeilingExceeded
	}
	return nil
}

// CanReject carries the same authority as approval, ceiling included:
// above the ceiling the decision either way belongs to an admin.
func (g *Gate) CanReject(caller principal.Principal, refund *refunddomain.RefundRequest) error {
	return g.CanApprove(caller, refund)
}

// CanProcess allows admins and finance staff of the selling vendor to push
// an approved refund to its gateway.
func (g *Gate) CanProcess(caller principal.Principal, refund *refunddomain.RefundRequest) error {
	if caller.IsAdmin {
		return nil
	}
	if caller.Has(principal.CapabilityFinance) && caller.SameVendor(refund.VendorID) {
		return nil
	}
	return ErrNotAllowed
}

// CanCancel allows the requesting customer to withdraw their own refund and
// vendor managers or admins to cancel on the customer's behalf. Whether the
// current status still permits cancellation is the lifecycle's decision.
func (g *Gate) CanCancel(caller principal.Principal, refund *refunddomain.RefundRequest) error {
	if caller.IsAdmin {
		return nil
	}
	if caller.IsCustomer() && caller.CustomerID == refund.CustomerID {
		return nil
	}
	if caller.Has(principal.CapabilityVendorManager) && caller.SameVendor(refund.VendorID) {
		return nil
	}
	return ErrNotAllowed
}

// CanTransition dispatches to the per-action check.
func (g *Gate) CanTransition(
	caller principal.Principal,
	refund *refunddomain.RefundRequest,
	action refunddomain.TransitionAction,
) error {
	switch action {
	case refunddomain.ActionApprove:
		return g.CanApprove(caller, refund)
	case refunddomain.ActionReject:
		return g.CanReject(caller, refund)
	case refunddomain.ActionProcess:
		return g.CanProcess(caller, refund)
	case refunddomain.ActionCancel:
		return g.CanCancel(caller, refund)
	default:
		return ErrNotAllowed
	}
}
