package auth

import (
	"context"
	"slices"
)

type identityKey struct{}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	TenantID string
	Role     Role
	Subject  string
	// Vessels restricts the caller to equipment on these vessels. Empty means
	// every vessel of the tenant.
	Vessels []string
}

// AllowsVessel reports whether the identity may access equipment on vesselID.
func (i Identity) AllowsVessel(vesselID string) bool {
	if len(i.Vessels) == 0 {
		return true
	}
	return vesselID != "" && slices.Contains(i.Vessels, vesselID)
}

// ContextWithIdentity stores the identity in ctx.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// WithIdentity stores a tenant-wide identity in ctx.
func WithIdentity(ctx context.Context, tenantID string, role Role, subject string) context.Context {
	return ContextWithIdentity(ctx, Identity{TenantID: tenantID, Role: role, Subject: subject})
}

// IdentityFromContext returns the identity stored in ctx.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// TenantIDFromContext extracts tenant id from context.
func TenantIDFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.TenantID
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	identity, _ := IdentityFromContext(ctx)
	return identity.Role
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.Subject
}
