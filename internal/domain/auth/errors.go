package auth

import "errors"

// ErrInvalidCredentials is returned by identity-provider adapters when a
// sign-in is rejected. Defined at the domain level so adapters and the
// coordinator agree on one sentinel.
var ErrInvalidCredentials = errors.New("invalid credentials")
