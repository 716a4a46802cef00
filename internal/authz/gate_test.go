package authz

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vendora/refundcore/internal/config"
	"github.com/vendora/refundcore/internal/principal"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	"github.com/vendora/refundcore/internal/sourcetxn"
)

func toID(v int64) snowflake.ID { return snowflake.ID(v) }

func newGate(t *testing.T, ceiling string) *Gate {
	t.Helper()
	return NewGate(config.Config{VendorApprovalCeiling: ceiling})
}

func refundFor(vendorID, customerID int64, amount string) *refunddomain.RefundRequest {
	parsed, _ := decimal.NewFromString(amount)
	return &refunddomain.RefundRequest{
		VendorID:   toID(vendorID),
		CustomerID: toID(customerID),
		Amount:     parsed,
		Status:     refunddomain.StatusPending,
	}
}

func TestCanCreateOwningCustomer(t *testing.T) {
	gate := newGate(t, "10000.00")
	src := &sourcetxn.SourceTransaction{VendorID: toID(1), CustomerID: toID(42)}

	caller := principal.Principal{ID: toID(42), CustomerID: toID(42)}
	require.NoError(t, gate.CanCreate(caller, src))

	stranger := principal.Principal{ID: toID(43), CustomerID: toID(43)}
	require.ErrorIs(t, gate.CanCreate(stranger, src), ErrNotAllowed)
}

func TestCanCreateVendorManagerScope(t *testing.T) {
	gate := newGate(t, "10000.00")
	src := &sourcetxn.SourceTransaction{VendorID: toID(1), CustomerID: toID(42)}

	manager := principal.Principal{
		ID:           toID(7),
		VendorID:     toID(1),
		Capabilities: []string{principal.CapabilityVendorManager},
	}
	require.NoError(t, gate.CanCreate(manager, src))

	otherVendor := principal.Principal{
		ID:           toID(8),
		VendorID:     toID(2),
		Capabilities: []string{principal.CapabilityVendorManager},
	}
	require.ErrorIs(t, gate.CanCreate(otherVendor, src), ErrNotAllowed)
}

func TestCanApproveCeiling(t *testing.T) {
	gate := newGate(t, "10000.00")
	manager := principal.Principal{
		ID:           toID(7),
		VendorID:     toID(1),
		Capabilities: []string{principal.CapabilityVendorManager},
	}

	require.NoError(t, gate.CanApprove(manager, refundFor(1, 42, "10000.00")))
	require.ErrorIs(t,
		gate.CanApprove(manager, refundFor(1, 42, "10000.01")),
		ErrApprovalCeilingExceeded,
	)
}

func TestCanApproveAdminBypassesCeiling(t *testing.T) {
	gate := newGate(t, "100.00")
	admin := principal.Principal{ID: toID(1), IsAdmin: true}

	require.NoError(t, gate.CanApprove(admin, refundFor(1, 42, "999999.00")))
}

func TestCanApproveDeniesCustomer(t *testing.T) {
	gate := newGate(t, "10000.00")
	customer := principal.Principal{ID: toID(42), CustomerID: toID(42)}

	require.ErrorIs(t, gate.CanApprove(customer, refundFor(1, 42, "50.00")), ErrNotAllowed)
}

func TestCanRejectSharesApprovalCeiling(t *testing.T) {
	gate := newGate(t, "100.00")
	manager := principal.Principal{
		ID:           toID(7),
		VendorID:     toID(1),
		Capabilities: []string{principal.CapabilityVendorManager},
	}

	require.NoError(t, gate.CanReject(manager, refundFor(1, 42, "100.00")))
	require.ErrorIs(t,
		gate.CanReject(manager, refundFor(1, 42, "5000.00")),
		ErrApprovalCeilingExceeded,
	)

	admin := principal.Principal{ID: toID(1), IsAdmin: true}
	require.NoError(t, gate.CanReject(admin, refundFor(1, 42, "5000.00")))
}

func TestCanProcessRequiresFinance(t *testing.T) {
	gate := newGate(t, "10000.00")
	refund := refundFor(1, 42, "50.00")

	finance := principal.Principal{
		ID:           toID(9),
		VendorID:     toID(1),
		Capabilities: []string{principal.CapabilityFinance},
	}
	require.NoError(t, gate.CanProcess(finance, refund))

	manager := principal.Principal{
		ID:           toID(7),
		VendorID:     toID(1),
		Capabilities: []string{principal.CapabilityVendorManager},
	}
	require.ErrorIs(t, gate.CanProcess(manager, refund), ErrNotAllowed)
}

func TestCanCancelOwningCustomer(t *testing.T) {
	gate := newGate(t, "10000.00")
	refund := refundFor(1, 42, "50.00")

	owner := principal.Principal{ID: toID(42), CustomerID: toID(42)}
	require.NoError(t, gate.CanCancel(owner, refund))

	stranger := principal.Principal{ID: toID(43), CustomerID: toID(43)}
	require.ErrorIs(t, gate.CanCancel(stranger, refund), ErrNotAllowed)
}

func TestCanViewVendorStaff(t *testing.T) {
	gate := newGate(t, "10000.00")
	refund := refundFor(1, 42, "50.00")

	staff := principal.Principal{ID: toID(5), VendorID: toID(1)}
	require.NoError(t, gate.CanView(staff, refund))

	otherVendor := principal.Principal{ID: toID(6), VendorID: toID(2)}
	require.ErrorIs(t, gate.CanView(otherVendor, refund), ErrNotAllowed)
}

func TestCanTransitionDispatch(t *testing.T) {
	gate := newGate(t, "10000.00")
	refund := refundFor(1, 42, "50.00")
	admin := principal.Principal{ID: toID(1), IsAdmin: true}

	for _, action := range []refunddomain.TransitionAction{
		refunddomain.ActionApprove,
		refunddomain.ActionReject,
		refunddomain.ActionProcess,
		refunddomain.ActionCancel,
	} {
		require.NoError(t, gate.CanTransition(admin, refund, action))
	}
	require.ErrorIs(t, gate.CanTransition(admin, refund, "archive"), ErrNotAllowed)
}
