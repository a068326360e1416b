// Package auth holds the per-request caller identity that every workflow
// operation receives explicitly.
package auth

import (
	"context"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
)

// Principal is resolved once per request from the verified token and the
// stored user profile.
type Principal struct {
	UserID         string
	DisplayName    string
	Role           models.Role
	OrganizationID string
}

// FromUser builds the principal for a stored user.
func FromUser(u *models.User) Principal {
	return Principal{UserID: u.ID, DisplayName: u.DisplayName, Role: u.Role, OrganizationID: u.OrganizationID}
}

// Authenticated reports whether the principal carries a verified identity.
func (p Principal) Authenticated() bool { return p.UserID != "" }

// Require returns Unauthenticated for an empty principal.
func (p Principal) Require() error {
	if !p.Authenticated() {
		return apperr.New(apperr.Unauthenticated, "sign in required")
	}
	return nil
}

// RequireOrg additionally checks that orgID is the caller's organization.
func (p Principal) RequireOrg(orgID string) error {
	if err := p.Require(); err != nil {
		return err
	}
	if p.OrganizationID == "" || p.OrganizationID != orgID {
		return apperr.New(apperr.PermissionDenied, "organization mismatch")
	}
	return nil
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the principal to ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &p)
}

// PrincipalFromContext extracts the principal attached by ContextWithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}
