package authcore

import (
	"context"
	"errors"
	"time"
)

// Administrative account lifecycle. Transitions are validated against a
// fixed matrix; deleted is terminal.
//
//	active    -> suspended, deleted
//	suspended -> active, deleted
//	deleted   -> (none)

func validTransition(from, to AccountStatus) bool {
	switch from {
	case StatusActive:
		return to == StatusSuspended || to == StatusDeleted
	case StatusSuspended:
		return to == StatusActive || to == StatusDeleted
	default:
		return false
	}
}

func (e *Engine) setStatus(ctx context.Context, id string, to AccountStatus) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	a, err := e.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return ErrBackendUnavailable
	}
	if a.Status == to {
		return nil
	}
	if !validTransition(a.Status, to) {
		return ErrStatusTransition
	}

	if err := e.store.UpdateStatus(ctx, id, to); err != nil {
		return ErrBackendUnavailable
	}

	e.metricInc(MetricStatusChanged)
	e.emitAudit(ctx, AuditStatusChanged, true, id, "", map[string]string{
		"from": a.Status.String(),
		"to":   to.String(),
	})
	return nil
}

// Suspend blocks the account from logging in and refreshing until
// reinstated. Outstanding access tokens ride out their TTL.
func (e *Engine) Suspend(ctx context.Context, id string) error {
	return e.setStatus(ctx, id, StatusSuspended)
}

// Reinstate returns a suspended account to active.
func (e *Engine) Reinstate(ctx context.Context, id string) error {
	return e.setStatus(ctx, id, StatusActive)
}

// Delete marks the account deleted. The transition is terminal; deleted
// accounts behave like nonexistent ones on every authentication path.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.setStatus(ctx, id, StatusDeleted)
}

// Unlock clears an active lockout window and the failure counter ahead of
// its natural expiry. Unlocking an account that is not locked is a no-op.
func (e *Engine) Unlock(ctx context.Context, id string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	a, err := e.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return ErrBackendUnavailable
	}
	if a.LockedUntil.IsZero() && a.FailedLoginCount == 0 {
		return nil
	}

	if err := e.store.UpdateLockout(ctx, id, 0, time.Time{}, time.Time{}); err != nil {
		return ErrBackendUnavailable
	}

	e.metricInc(MetricAccountUnlocked)
	e.emitAudit(ctx, AuditAccountUnlocked, true, id, "", nil)
	return nil
}
