package authcore

import (
	"context"
	"time"
)

// Role is the fixed set of principal roles in the school platform.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	}
	return false
}

// AccountStatus is the administrative lifecycle state of an account.
// Lockout and verification are not statuses: they are derived lazily from
// LockedUntil and Verified so that impossible combinations (locked+deleted)
// cannot be stored.
type AccountStatus uint8

const (
	StatusActive AccountStatus = iota
	StatusSuspended
	StatusDeleted
)

// String returns the wire/storage name of the status.
func (s AccountStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Account is the identity and security state owned by the credential store.
//
// Invariants maintained by the Engine:
//   - LockedUntil is non-zero only while FailedLoginCount has crossed the
//     lockout threshold since the last successful login or explicit unlock.
//   - ResetTokenHash and ResetTokenExpires are both set or both zero.
type Account struct {
	ID           string
	Email        string // stored lowercase, unique
	Username     string // derived from display name, unique
	DisplayName  string
	PasswordHash string
	Role         Role
	Verified     bool
	Status       AccountStatus

	FailedLoginCount  int
	LockedUntil       time.Time // zero = not locked
	ResetTokenHash    string    // hex SHA-256 of the outstanding reset token
	ResetTokenExpires time.Time
	LastLogin         time.Time
	CreatedAt         time.Time
}

// Locked reports whether the account is inside an active lockout window.
// Lockout self-clears by the passage of time; no sweeper updates the row.
func (a *Account) Locked(now time.Time) bool {
	return !a.LockedUntil.IsZero() && now.Before(a.LockedUntil)
}

// CredentialStore is the narrow persistence contract the Engine depends on.
// Each method is expected to be a single atomic statement against the
// identity row; last-writer-wins per field is an acceptable consistency
// model for concurrent logins against the same account.
//
// Implementations return [ErrAccountNotFound] for missing rows and
// [ErrDuplicateEmail] / [ErrDuplicateUsername] for uniqueness violations
// on Insert.
type CredentialStore interface {
	// FindByLogin resolves an account by email (case-insensitive) or
	// username.
	FindByLogin(ctx context.Context, emailOrUsername string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Insert(ctx context.Context, account *Account) error

	// UpdateLockout writes the attempt counter, lock window, and last-login
	// fields in one statement. A zero lockedUntil clears the lock; a zero
	// lastLogin leaves the stored value untouched.
	UpdateLockout(ctx context.Context, id string, failedCount int, lockedUntil, lastLogin time.Time) error
	UpdateVerification(ctx context.Context, id string, verified bool) error
	UpdateStatus(ctx context.Context, id string, status AccountStatus) error

	// UpdateResetToken stores the hash and expiry of the single outstanding
	// reset token, replacing any previous one.
	UpdateResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// TemplateKind names an outbound notification template.
type TemplateKind string

const (
	TemplateWelcome                   TemplateKind = "welcome"
	TemplateVerification              TemplateKind = "verification"
	TemplateVerificationResend        TemplateKind = "verificationResend"
	TemplatePasswordReset             TemplateKind = "passwordReset"
	TemplatePasswordResetConfirmation TemplateKind = "passwordResetConfirmation"
)

// Notifier delivers account mail. The Engine calls it fire-and-forget on a
// detached goroutine: a failed or slow send never fails the operation that
// triggered it.
type Notifier interface {
	Send(ctx context.Context, kind TemplateKind, recipient string, data map[string]string) error
}

// NoopNotifier discards all notifications. It is the default when no
// Notifier is configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, TemplateKind, string, map[string]string) error {
	return nil
}

// TokenPair is an access/refresh token pair issued by Login and Refresh.
// Registration does not auto-login; new accounts authenticate explicitly.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Identity is the result of verifying an access token. It reflects the
// account snapshot at issuance time, not the current row.
type Identity struct {
	AccountID string
	Role      Role
	Verified  bool
	ExpiresAt time.Time
}

// RegisterRequest is the input for [Engine.Register].
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        Role
}

// RegisterResult is returned by [Engine.Register]. VerificationToken is the
// same token handed to the Notifier; it is exposed so callers that own the
// delivery channel (or tests) can use it directly.
type RegisterResult struct {
	Account           *Account
	VerificationToken string
}
