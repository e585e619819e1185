package authcore

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/campuskit/authcore/internal/admission"
	"github.com/campuskit/authcore/token"
)

// RequestPasswordReset begins the reset workflow. The return value is
// deliberately uninformative: unknown addresses and ineligible accounts
// (deleted, suspended, unverified) succeed without sending anything, so
// the endpoint cannot confirm which emails exist or what state they are
// in. Only the latest reset token is honored; requesting again replaces
// any outstanding one.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := e.admit(ctx, admission.RoutePasswordReset, email); err != nil {
		return err
	}
	if !validEmail(email) {
		return ErrEmailInvalid
	}

	a, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, AuditPasswordResetRequested, false, "", "unknown_email", nil)
			return nil
		}
		return ErrBackendUnavailable
	}
	switch {
	case a.Status == StatusDeleted:
		e.emitAudit(ctx, AuditPasswordResetRequested, false, a.ID, "account_deleted", nil)
		return nil
	case a.Status != StatusActive:
		e.emitAudit(ctx, AuditPasswordResetRequested, false, a.ID, "account_suspended", nil)
		return nil
	case !a.Verified:
		e.emitAudit(ctx, AuditPasswordResetRequested, false, a.ID, "account_unverified", nil)
		return nil
	}

	resetToken, err := e.tokens.Issue(token.KindReset, a.ID, string(a.Role), a.Verified)
	if err != nil {
		return ErrBackendUnavailable
	}

	expires := time.Now().Add(e.config.Token.ResetTTL)
	if err := e.store.UpdateResetToken(ctx, a.ID, hashResetToken(resetToken), expires); err != nil {
		return ErrBackendUnavailable
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, AuditPasswordResetRequested, true, a.ID, "", nil)
	e.notifyAsync(TemplatePasswordReset, a.Email, map[string]string{
		"display_name": a.DisplayName,
		"token":        resetToken,
	})
	return nil
}

// ResetPassword consumes a reset token and installs a new password. Tokens
// are single-use: completing a reset clears the stored hash, so replaying
// the same token fails even inside its TTL. A successful reset also clears
// any active lockout, since proving mailbox control supersedes the
// guessed-password signal.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(resetToken, token.KindReset)
	if err != nil {
		e.metricInc(MetricResetFailure)
		if errors.Is(err, token.ErrExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}

	a, err := e.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricResetFailure)
			return ErrTokenInvalid
		}
		return ErrBackendUnavailable
	}
	if a.Status == StatusDeleted {
		e.metricInc(MetricResetFailure)
		return ErrTokenInvalid
	}

	// The signed token must also match the stored single-use hash; an
	// older, replaced, or already consumed token fails here even though
	// its signature is valid.
	if a.ResetTokenHash == "" || !time.Now().Before(a.ResetTokenExpires) {
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, AuditPasswordResetCompleted, false, a.ID, "no_outstanding_token", nil)
		return ErrTokenInvalid
	}
	if subtle.ConstantTimeCompare([]byte(a.ResetTokenHash), []byte(hashResetToken(resetToken))) != 1 {
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, AuditPasswordResetCompleted, false, a.ID, "token_mismatch", nil)
		return ErrTokenInvalid
	}

	if err := e.hasher.ValidateStrength(newPassword); err != nil {
		e.metricInc(MetricResetFailure)
		return ErrPasswordPolicy
	}
	if same, err := e.hasher.Verify(a.PasswordHash, newPassword); err == nil && same {
		e.metricInc(MetricResetFailure)
		return ErrPasswordReuse
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return ErrBackendUnavailable
	}

	if err := e.store.UpdatePasswordHash(ctx, a.ID, newHash); err != nil {
		return ErrBackendUnavailable
	}
	if err := e.store.ClearResetToken(ctx, a.ID); err != nil {
		return ErrBackendUnavailable
	}
	if err := e.store.UpdateLockout(ctx, a.ID, 0, time.Time{}, time.Time{}); err != nil {
		return ErrBackendUnavailable
	}

	e.metricInc(MetricResetCompleted)
	e.emitAudit(ctx, AuditPasswordResetCompleted, true, a.ID, "", nil)
	e.notifyAsync(TemplatePasswordResetConfirmation, a.Email, map[string]string{
		"display_name": a.DisplayName,
	})
	return nil
}

func hashResetToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
