package domain

import (
	"context"
	"strings"
)

// Role is a closed enumeration of the roles an identity provider may assert.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleMember Role = "member"
)

// ParseRole maps a role claim to a Role. Unknown values are rejected rather than guessed.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleStaff:
		return RoleStaff, true
	case RoleMember:
		return RoleMember, true
	}
	return "", false
}

// Capability is a single permission checked by the delivery layer.
type Capability string

const (
	CapManageEvents        Capability = "events:manage"
	CapReadRegistrations   Capability = "registrations:read"
	CapManageRegistrations Capability = "registrations:manage"
	CapReconcile           Capability = "integrity:reconcile"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin:  {CapManageEvents, CapReadRegistrations, CapManageRegistrations, CapReconcile},
	RoleStaff:  {CapReadRegistrations},
	RoleMember: nil,
}

// Principal is the authenticated caller as supplied by the identity collaborator.
type Principal struct {
	UserID string
	Email  string
	Roles  []Role
}

// Can reports whether any of the principal's roles grants c.
func (p *Principal) Can(c Capability) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		for _, granted := range roleCapabilities[r] {
			if granted == c {
				return true
			}
		}
	}
	return false
}

// TokenIssuer issues tokens (e.g. JWT) for a principal. Used by development tooling;
// production tokens come from the identity provider.
type TokenIssuer interface {
	Issue(principal *Principal) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated principal.
type TokenVerifier interface {
	Verify(token string) (*Principal, error)
}

// Transactor runs fn so that every repository call made with the context passed to fn
// commits or rolls back as one unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
