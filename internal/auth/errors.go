package auth

import "errors"

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTenantMismatch indicates resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
)

// EnsureTenant verifies a resource tenant against the caller's tenant.
// An empty caller tenant (auth disabled) or empty resource tenant always passes.
func EnsureTenant(callerTenant, resourceTenant string) error {
	if callerTenant == "" || resourceTenant == "" {
		return nil
	}
	if callerTenant != resourceTenant {
		return ErrTenantMismatch
	}
	return nil
}
