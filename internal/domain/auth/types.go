package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy persistence and cache entries.
// Valid values are defined as constants below.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// DefaultRole is assigned to identities with no role-store record.
// New identities are assumed to be ordinary customers until provisioned otherwise.
const DefaultRole = RoleBuyer

// ParseRole validates an untrusted string against the closed role enumeration.
// Role values arrive from an external store and must never enter a Session unvalidated.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleBuyer:
		return RoleBuyer, nil
	case RoleSeller:
		return RoleSeller, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("invalid role: %q (valid options: buyer, seller, admin)", s)
	}
}

// Valid reports whether r is a member of the closed enumeration.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Satisfies reports whether r grants access to surfaces requiring required.
// Admin implicitly satisfies seller-only checks; this is the single-sourced
// elevation policy for the whole application.
func (r Role) Satisfies(required Role) bool {
	if r == required {
		return true
	}
	return r == RoleAdmin && required == RoleSeller
}

// Readiness gates whether consumers may treat the session as decision-worthy.
// NotReady and Loading must be treated identically by consumers: do not make
// access-control decisions yet.
type Readiness int

const (
	ReadinessNotReady Readiness = iota
	ReadinessLoading
	ReadinessReady
)

// String returns the readiness label used in logs and metrics tags.
func (r Readiness) String() string {
	switch r {
	case ReadinessNotReady:
		return "not_ready"
	case ReadinessLoading:
		return "loading"
	case ReadinessReady:
		return "ready"
	default:
		return "unknown"
	}
}

// State names the coordinator's discrete lifecycle states. Every mutation of
// the canonical session lands in exactly one of these, never an unnamed hybrid.
type State int

const (
	StateSignedOut State = iota
	StateAuthenticating
	StateSignedIn
	StateDesynchronized
)

// String returns the state label used in logs and metrics tags.
func (s State) String() string {
	switch s {
	case StateSignedOut:
		return "signed_out"
	case StateAuthenticating:
		return "authenticating"
	case StateSignedIn:
		return "signed_in"
	case StateDesynchronized:
		return "desynchronized"
	default:
		return "unknown"
	}
}

// Session is the coordinator's canonical record of the current user.
// Invariant: at any externally observable instant, UserID, Role, and Token
// are either all present and mutually consistent or all absent.
type Session struct {
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	Token         string    `json:"token"`
	TokenIssuedAt time.Time `json:"token_issued_at"`
}

// IsZero reports whether the session is fully absent.
func (s Session) IsZero() bool {
	return s.UserID == "" && s.Role == "" && s.Token == ""
}

// Consistent reports whether the session honors the all-or-nothing invariant.
func (s Session) Consistent() bool {
	if s.IsZero() {
		return true
	}
	return s.UserID != "" && s.Role.Valid() && s.Token != ""
}

// Identity represents the authenticated principal returned by an identity provider.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID   string
	Email    string
	Token    string
	IssuedAt time.Time
}

// EventKind classifies asynchronous notifications from the identity provider.
type EventKind string

const (
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
)

// ProviderEvent is an asynchronous auth-change notification. Identity is nil
// for sign-out events.
type ProviderEvent struct {
	Kind     EventKind
	Identity *Identity
	At       time.Time
}
