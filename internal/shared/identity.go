package shared

import "context"

// Identity describes the caller as asserted by the upstream auth collaborator.
// System users bypass company scoping and may act on arbitrary companies.
type Identity struct {
	UserID       int64
	CompanyID    int64
	IsSystemUser bool
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// CanActOn reports whether the caller may operate on the given company.
func (i Identity) CanActOn(companyID int64) bool {
	return i.IsSystemUser || i.CompanyID == companyID
}
