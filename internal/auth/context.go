package auth

import "context"

type identityKey struct{}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	TenantID string
	Role     Role
	Subject  string
}

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, tenantID string, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{TenantID: tenantID, Role: role, Subject: subject})
}

// IdentityFromContext returns the caller identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// TenantIDFromContext returns the caller tenant, or "" when unauthenticated.
func TenantIDFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.TenantID
}

// RoleFromContext returns the caller role when it is a known role.
func RoleFromContext(ctx context.Context) Role {
	identity, _ := IdentityFromContext(ctx)
	if role, ok := NormalizeRole(string(identity.Role)); ok {
		return role
	}
	return ""
}

// SubjectFromContext returns the token subject.
func SubjectFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.Subject
}
