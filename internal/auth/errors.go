package auth

import (
	"errors"

	domainauth "github.com/marketbay/storefront/internal/domain/auth"
)

// Shared sentinel errors for the session coordinator and its collaborators.
var (
	// ErrInvalidCredentials is returned when the identity provider rejects a
	// sign-in. The coordinator remains signed out; no state changes.
	ErrInvalidCredentials = domainauth.ErrInvalidCredentials

	// ErrRoleResolution is returned when the role store is unreachable or
	// erroring. It is distinct from a missing record, which resolves to the
	// default role instead.
	ErrRoleResolution = errors.New("role resolution failed")

	// ErrProviderUnavailable is returned when a provider call could not
	// complete. The caller may retry; the coordinator settles signed out.
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// ErrLoginInFlight is returned when Login is called while a previous
	// explicit transition has not reached a terminal outcome.
	ErrLoginInFlight = errors.New("login already in flight")

	// ErrNotStarted is returned by operations that require startup
	// restoration to have run.
	ErrNotStarted = errors.New("coordinator not started")
)
