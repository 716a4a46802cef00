// Package principal carries the resolved caller identity. Roles and vendor
// scope are resolved once per request from the authentication subsystem and
// passed into the core explicitly; nothing in the core reads ambient session
// state.
package principal

import "github.com/bwmarrin/snowflake"

// Capability names granted by the authentication subsystem.
const (
	CapabilityVendorManager = "vendor_manager"
	CapabilityFinance       = "finance"
)

// Principal is the immutable caller identity for one request.
type Principal struct {
	ID           snowflake.ID
	IsAdmin      bool
	VendorID     snowflake.ID
	CustomerID   snowflake.ID
	Capabilities []string
}

// Has reports whether the principal holds the named capability.
func (p Principal) Has(capability string) bool {
	for _, held := range p.Capabilities {
		if held == capability {
			return true
		}
	}
	return false
}

// IsCustomer reports whether the principal acts as a storefront customer.
func (p Principal) IsCustomer() bool {
	return p.CustomerID != 0
}

// SameVendor reports whether the principal is scoped to the given vendor.
func (p Principal) SameVendor(vendorID snowflake.ID) bool {
	return p.VendorID != 0 && p.VendorID == vendorID
}
