// Package access decides whether a session may use a capability.
package access

import (
	"github.com/pavelanni/classroom/internal/model"
)

// Resolver maps a session token to its identity.
type Resolver interface {
	Resolve(token string) (model.Identity, bool)
}

// Kind enumerates requirement kinds.
type Kind int

const (
	// Public requires nothing.
	Public Kind = iota
	// AnyAuthenticated requires a live session.
	AnyAuthenticated
	// AdminOnly requires a live admin session.
	AdminOnly
	// SelfOrAdmin requires the session to belong to Owner or to an admin.
	SelfOrAdmin
)

func (k Kind) String() string {
	switch k {
	case Public:
		return "public"
	case AnyAuthenticated:
		return "any-authenticated"
	case AdminOnly:
		return "admin-only"
	case SelfOrAdmin:
		return "self-or-admin"
	}
	return "unknown"
}

// Requirement is what a route demands of the caller.
type Requirement struct {
	Kind  Kind
	Owner string // resource owner, for SelfOrAdmin
}

// RequireAny is the Any-Authenticated requirement.
func RequireAny() Requirement { return Requirement{Kind: AnyAuthenticated} }

// RequireAdmin is the Admin-Only requirement.
func RequireAdmin() Requirement { return Requirement{Kind: AdminOnly} }

// RequireSelfOrAdmin is the Self-Or-Admin requirement for owner's resources.
func RequireSelfOrAdmin(owner string) Requirement {
	return Requirement{Kind: SelfOrAdmin, Owner: owner}
}

// Outcome is the verdict of an authorization check.
type Outcome int

const (
	// Allow lets the request through.
	Allow Outcome = iota
	// DenyUnauthenticated means there is no live session; send to login.
	DenyUnauthenticated
	// DenyForbidden means the session lacks the needed role.
	DenyForbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Decision carries the outcome and, when a session resolved, its identity.
type Decision struct {
	Outcome  Outcome
	Identity model.Identity
	// Authenticated is true whenever the token resolved, even if the
	// request was then forbidden.
	Authenticated bool
}

// Allowed reports whether the decision lets the request through.
func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Gate evaluates requirements against the session registry.
type Gate struct {
	sessions Resolver
}

// NewGate creates a Gate backed by the given session resolver.
func NewGate(sessions Resolver) *Gate {
	return &Gate{sessions: sessions}
}

// Authorize checks token against req. Apart from the expiry cleanup done
// by the resolver it has no side effects.
func (g *Gate) Authorize(token string, req Requirement) Decision {
	id, ok := g.sessions.Resolve(token)
	if req.Kind == Public {
		return Decision{Outcome: Allow, Identity: id, Authenticated: ok}
	}
	if !ok {
		return Decision{Outcome: DenyUnauthenticated}
	}
	d := Decision{Outcome: DenyForbidden, Identity: id, Authenticated: true}
	switch req.Kind {
	case AnyAuthenticated:
		d.Outcome = Allow
	case AdminOnly:
		if id.IsAdmin() {
			d.Outcome = Allow
		}
	case SelfOrAdmin:
		if id.IsAdmin() || (req.Owner != "" && id.Username == req.Owner) {
			d.Outcome = Allow
		}
	}
	return d
}
