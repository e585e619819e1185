package authcore

import (
	"errors"
	"fmt"
	"time"
)

// Category sentinels. Every operational error below wraps exactly one of
// these so the request boundary can map with errors.Is:
// validation → 400, conflict → 409, authentication → 401, rate limit → 429.
var (
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrAuthentication = errors.New("authentication failed")
	ErrRateLimited    = errors.New("too many attempts")
)

var (
	ErrEmailInvalid        = fmt.Errorf("%w: invalid email address", ErrValidation)
	ErrPasswordPolicy      = fmt.Errorf("%w: password does not meet policy", ErrValidation)
	ErrPasswordReuse       = fmt.Errorf("%w: new password must differ from current password", ErrValidation)
	ErrDisplayNameRequired = fmt.Errorf("%w: display name required", ErrValidation)
	ErrRoleInvalid         = fmt.Errorf("%w: unknown role", ErrValidation)
	ErrStatusTransition    = fmt.Errorf("%w: invalid account status transition", ErrValidation)

	ErrEmailTaken    = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrUsernameTaken = fmt.Errorf("%w: username already taken", ErrConflict)

	// ErrInvalidCredentials deliberately covers unknown identifier and wrong
	// password alike; callers must not be able to distinguish them.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	ErrTokenInvalid       = fmt.Errorf("%w: invalid token", ErrAuthentication)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", ErrAuthentication)
	ErrTokenRevoked       = fmt.Errorf("%w: token revoked", ErrAuthentication)
	ErrAccountLocked      = fmt.Errorf("%w: account temporarily locked", ErrAuthentication)
	ErrAccountSuspended   = fmt.Errorf("%w: account suspended", ErrAuthentication)
	ErrAccountDeleted     = fmt.Errorf("%w: account deleted", ErrAuthentication)
	ErrAccountUnverified  = fmt.Errorf("%w: email not verified", ErrAuthentication)
)

// Credential store sentinels. Store implementations return these; the Engine
// maps them to the taxonomy above before they cross the public boundary.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateUsername = errors.New("duplicate username")
)

var (
	// ErrEngineNotReady is returned when an Engine method is called on a
	// zero or partially constructed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrBackendUnavailable covers infrastructure failures (admission store,
	// credential store) that must surface as a generic internal error
	// without leaking persistence state.
	ErrBackendUnavailable = errors.New("authentication backend unavailable")
)

// LockoutError rejects a login attempted inside an active lockout window.
// It unwraps to [ErrAccountLocked] (and therefore [ErrAuthentication]).
type LockoutError struct {
	Until time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account temporarily locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockoutError) Unwrap() error { return ErrAccountLocked }

// RateLimitError rejects a request that exceeded an admission window.
// RetryAfter is a hint suitable for a Retry-After header. It unwraps to
// [ErrRateLimited].
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
