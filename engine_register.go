package authcore

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/authcore/internal/admission"
	"github.com/campuskit/authcore/token"
)

const usernameInsertAttempts = 5

// Register creates an unverified account and dispatches a verification
// email. The returned result includes the verification token so callers
// that own the delivery channel can use it directly; registration never
// auto-logs-in.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := e.admit(ctx, admission.RouteRegister, email); err != nil {
		return nil, err
	}

	if !validEmail(email) {
		e.metricInc(MetricRegisterRejected)
		return nil, ErrEmailInvalid
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		e.metricInc(MetricRegisterRejected)
		return nil, ErrDisplayNameRequired
	}
	if !req.Role.Valid() {
		e.metricInc(MetricRegisterRejected)
		return nil, ErrRoleInvalid
	}
	if err := e.hasher.ValidateStrength(req.Password); err != nil {
		e.metricInc(MetricRegisterRejected)
		return nil, ErrPasswordPolicy
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	a := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         req.Role,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	base := deriveUsername(displayName, email)
	if err := e.insertWithUsername(ctx, a, base); err != nil {
		return nil, err
	}

	verifyToken, err := e.tokens.Issue(token.KindVerify, a.ID, string(a.Role), false)
	if err != nil {
		return nil, ErrBackendUnavailable
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, AuditUserCreated, true, a.ID, "", map[string]string{
		"role": string(a.Role),
	})
	e.notifyAsync(TemplateVerification, a.Email, map[string]string{
		"display_name": a.DisplayName,
		"token":        verifyToken,
	})

	return &RegisterResult{Account: a, VerificationToken: verifyToken}, nil
}

// insertWithUsername inserts the account, retrying username collisions
// with a numeric suffix. Email collisions are terminal.
func (e *Engine) insertWithUsername(ctx context.Context, a *Account, base string) error {
	for attempt := 0; attempt < usernameInsertAttempts; attempt++ {
		a.Username = base
		if attempt > 0 {
			a.Username = fmt.Sprintf("%s%d", base, attempt+1)
		}

		err := e.store.Insert(ctx, a)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrDuplicateEmail):
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, AuditUserCreated, false, "", "duplicate_email", nil)
			return ErrEmailTaken
		case errors.Is(err, ErrDuplicateUsername):
			continue
		default:
			return ErrBackendUnavailable
		}
	}
	e.metricInc(MetricRegisterDuplicate)
	return ErrUsernameTaken
}

// VerifyEmail consumes a verification token. It is idempotent: verifying
// an already verified account succeeds without side effects, so double
// clicks and mail-client prefetchers are harmless.
func (e *Engine) VerifyEmail(ctx context.Context, verifyToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(verifyToken, token.KindVerify)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}

	a, err := e.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrTokenInvalid
		}
		return ErrBackendUnavailable
	}
	if a.Status == StatusDeleted {
		return ErrTokenInvalid
	}
	if a.Verified {
		return nil
	}

	if err := e.store.UpdateVerification(ctx, a.ID, true); err != nil {
		return ErrBackendUnavailable
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, AuditEmailVerified, true, a.ID, "", nil)
	e.notifyAsync(TemplateWelcome, a.Email, map[string]string{
		"display_name": a.DisplayName,
	})
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// active account. The response is deliberately generic: unknown addresses,
// already verified accounts, and non-active accounts succeed without
// sending anything, so the endpoint cannot be used to probe which emails
// are registered.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := e.admit(ctx, admission.RouteVerificationResend, email); err != nil {
		return err
	}
	if !validEmail(email) {
		return ErrEmailInvalid
	}

	a, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, AuditVerificationResent, false, "", "unknown_email", nil)
			return nil
		}
		return ErrBackendUnavailable
	}
	if a.Verified || a.Status != StatusActive {
		e.emitAudit(ctx, AuditVerificationResent, false, a.ID, "not_applicable", nil)
		return nil
	}

	verifyToken, err := e.tokens.Issue(token.KindVerify, a.ID, string(a.Role), false)
	if err != nil {
		return ErrBackendUnavailable
	}

	e.metricInc(MetricVerificationResent)
	e.emitAudit(ctx, AuditVerificationResent, true, a.ID, "", nil)
	e.notifyAsync(TemplateVerificationResend, a.Email, map[string]string{
		"display_name": a.DisplayName,
		"token":        verifyToken,
	})
	return nil
}

func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	// Require a dotted domain; mail.ParseAddress accepts bare hosts.
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

// deriveUsername builds a login handle from the display name: lowercase,
// word-joined with dots, non-alphanumerics stripped. Falls back to the
// email local part when nothing usable remains.
func deriveUsername(displayName, email string) string {
	var b strings.Builder
	lastDot := true
	for _, r := range strings.ToLower(displayName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDot = false
		default:
			if !lastDot {
				b.WriteByte('.')
				lastDot = true
			}
		}
	}
	name := strings.Trim(b.String(), ".")
	if name != "" {
		return name
	}

	if at := strings.IndexByte(email, '@'); at > 0 {
		local := strings.Trim(strings.ToLower(email[:at]), ".")
		if local != "" {
			return local
		}
	}
	return "user." + fmt.Sprintf("%d", time.Now().UnixNano())
}
