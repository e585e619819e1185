package authcore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/campuskit/authcore/internal/admission"
	"github.com/campuskit/authcore/token"
)

// Login authenticates by email or username and returns a token pair.
//
// All credential failures collapse into [ErrInvalidCredentials]; callers
// cannot distinguish an unknown identifier from a wrong password. The
// failure that crosses the lockout threshold still reports invalid
// credentials; only subsequent attempts inside the lock window see a
// [LockoutError]. Unverified accounts may log in; their tokens carry
// verified=false so downstream gates can restrict them.
func (e *Engine) Login(ctx context.Context, identifier, pass string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if err := e.admit(ctx, admission.RouteLogin, identifier); err != nil {
		return nil, err
	}
	if identifier == "" || pass == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailed, false, "", "empty_input", nil)
		return nil, ErrInvalidCredentials
	}

	a, err := e.store.FindByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, AuditLoginFailed, false, "", "unknown_identifier", map[string]string{
				"identifier": identifier,
			})
			return nil, ErrInvalidCredentials
		}
		return nil, ErrBackendUnavailable
	}

	// Deleted accounts behave exactly like nonexistent ones.
	if a.Status == StatusDeleted {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailed, false, a.ID, "account_deleted", nil)
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if a.Locked(now) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, AuditLoginFailed, false, a.ID, "account_locked", map[string]string{
			"locked_until": a.LockedUntil.UTC().Format(time.RFC3339),
		})
		return nil, &LockoutError{Until: a.LockedUntil}
	}

	// An elapsed lock clears lazily: the counter restarts from zero on the
	// next failure, and no sweeper touches the row.
	failedCount := a.FailedLoginCount
	if !a.LockedUntil.IsZero() && !now.Before(a.LockedUntil) {
		failedCount = 0
	}

	ok, verifyErr := e.hasher.Verify(a.PasswordHash, pass)
	if verifyErr != nil || !ok {
		return nil, e.recordLoginFailure(ctx, a, failedCount, now)
	}

	if a.Status == StatusSuspended {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailed, false, a.ID, "account_suspended", nil)
		return nil, ErrAccountSuspended
	}

	pair, err := e.issuePair(a)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLoginFailed, false, a.ID, "token_issue_failed", nil)
		return nil, ErrBackendUnavailable
	}

	// Success resets the counter, clears any stale lock, and stamps the
	// last login, all in one statement.
	if err := e.store.UpdateLockout(ctx, a.ID, 0, time.Time{}, now); err != nil {
		return nil, ErrBackendUnavailable
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLogin, true, a.ID, "", nil)
	return pair, nil
}

// recordLoginFailure bumps the consecutive-failure counter and arms the
// lock window when the threshold is crossed.
func (e *Engine) recordLoginFailure(ctx context.Context, a *Account, failedCount int, now time.Time) error {
	failedCount++

	var lockedUntil time.Time
	if failedCount >= e.config.Lockout.Threshold {
		lockedUntil = now.Add(e.config.Lockout.Duration)
	}

	if err := e.store.UpdateLockout(ctx, a.ID, failedCount, lockedUntil, time.Time{}); err != nil {
		return ErrBackendUnavailable
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, AuditLoginFailed, false, a.ID, "password_mismatch", map[string]string{
		"failed_count": strconv.Itoa(failedCount),
	})

	if !lockedUntil.IsZero() {
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, AuditAccountLocked, true, a.ID, "", map[string]string{
			"locked_until": lockedUntil.UTC().Format(time.RFC3339),
		})
	}
	return ErrInvalidCredentials
}

// Logout revokes the access token so it is rejected for the rest of its
// lifetime. An already expired token is a no-op success: the caller's goal
// (that token no longer works) is already met. A malformed token is an
// error.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(accessToken, token.KindAccess)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			e.metricInc(MetricLogout)
			e.emitAudit(ctx, AuditLogout, true, "", "already_expired", nil)
			return nil
		}
		e.emitAudit(ctx, AuditLogout, false, "", "invalid_token", nil)
		return ErrTokenInvalid
	}

	if e.revoked != nil {
		if err := e.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return ErrBackendUnavailable
		}
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, AuditLogout, true, claims.Subject, "", nil)
	return nil
}

// Refresh exchanges a valid refresh token for a fresh pair. Unlike access
// tokens, refresh is gated on the current account row: suspended, deleted,
// locked, or still-unverified accounts cannot mint new tokens even though
// their outstanding access tokens ride out their TTL.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, token.ErrExpired) {
			e.emitAudit(ctx, AuditLoginFailed, false, "", "refresh_expired", nil)
			return nil, ErrTokenExpired
		}
		e.emitAudit(ctx, AuditLoginFailed, false, "", "refresh_invalid", nil)
		return nil, ErrTokenInvalid
	}

	if err := e.admit(ctx, admission.RouteRefresh, claims.Subject); err != nil {
		return nil, err
	}

	if e.revoked != nil {
		revoked, err := e.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, ErrBackendUnavailable
		}
		if revoked {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrTokenRevoked
		}
	}

	a, err := e.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrTokenInvalid
		}
		return nil, ErrBackendUnavailable
	}

	now := time.Now()
	switch {
	case a.Status == StatusDeleted:
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenInvalid
	case a.Status == StatusSuspended:
		e.metricInc(MetricRefreshFailure)
		return nil, ErrAccountSuspended
	case a.Locked(now):
		e.metricInc(MetricRefreshFailure)
		return nil, &LockoutError{Until: a.LockedUntil}
	case !a.Verified:
		e.metricInc(MetricRefreshFailure)
		return nil, ErrAccountUnverified
	}

	pair, err := e.issuePair(a)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrBackendUnavailable
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditTokenRefreshed, true, a.ID, "", nil)
	return pair, nil
}
