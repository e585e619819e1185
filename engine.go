package authcore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/campuskit/authcore/internal/admission"
	"github.com/campuskit/authcore/password"
	"github.com/campuskit/authcore/token"
)

// Engine is the authentication core. Construct it with [New]; the zero
// value is not usable. All methods are safe for concurrent use.
type Engine struct {
	config    Config
	store     CredentialStore
	notifier  Notifier
	tokens    *token.Manager
	hasher    *password.Hasher
	admission *admission.Controller
	revoked   RevocationList
	audit     *auditDispatcher
	metrics   *Metrics
}

// Close flushes the audit queue and releases the Engine's goroutines. The
// Engine must not be used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.droppedCount()
}

// MetricsSnapshot copies the engine counters for export.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil || e.metrics == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.tokens != nil && e.hasher != nil
}

// Authenticate verifies an access token and returns the identity it was
// issued for. The identity reflects the account snapshot at issuance;
// status changes since then surface on the next refresh, not here.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(accessToken, token.KindAccess)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if e.revoked != nil {
		revoked, err := e.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, ErrBackendUnavailable
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return &Identity{
		AccountID: claims.Subject,
		Role:      Role(claims.Role),
		Verified:  claims.Verified,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Account returns a sanitized copy of the account row: credential and
// reset-token material never leaves the engine.
func (e *Engine) Account(ctx context.Context, id string) (*Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	a, err := e.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, ErrBackendUnavailable
	}

	sanitized := *a
	sanitized.PasswordHash = ""
	sanitized.ResetTokenHash = ""
	sanitized.ResetTokenExpires = time.Time{}
	return &sanitized, nil
}

// admit consumes admission budget for route. The identity key is the
// client IP when present, falling back to the supplied identifier so
// library callers without HTTP context still get throttled.
func (e *Engine) admit(ctx context.Context, route admission.Route, fallback string) error {
	if e.admission == nil {
		return nil
	}
	identity := clientIPFromContext(ctx)
	if identity == "" {
		identity = fallback
	}

	err := e.admission.Allow(ctx, route, identity)
	if err == nil {
		return nil
	}

	var limited *admission.LimitExceededError
	if errors.As(err, &limited) {
		e.metricInc(MetricAdmissionRejected)
		e.emitAudit(ctx, AuditRateLimited, false, "", string(route), nil)
		return &RateLimitError{RetryAfter: limited.RetryAfter}
	}

	// Fail closed: an unreachable admission store must not disable the
	// throttle.
	return ErrBackendUnavailable
}

func (e *Engine) emitAudit(ctx context.Context, action AuditAction, success bool, accountID, detail string, metadata map[string]string) {
	if e.audit == nil {
		return
	}
	e.audit.emit(AuditEvent{
		Timestamp: time.Now().UTC(),
		Action:    action,
		AccountID: accountID,
		Detail:    detail,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	})
}

// notifyAsync sends mail on a detached goroutine. Delivery failures are
// logged and never fail the triggering operation.
func (e *Engine) notifyAsync(kind TemplateKind, recipient string, data map[string]string) {
	notifier := e.notifier
	if notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := notifier.Send(ctx, kind, recipient, data); err != nil {
			log.Printf("authcore: %s notification failed", kind)
		}
	}()
}

// issuePair mints a fresh access/refresh pair for the account.
func (e *Engine) issuePair(a *Account) (*TokenPair, error) {
	access, err := e.tokens.Issue(token.KindAccess, a.ID, string(a.Role), a.Verified)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.Issue(token.KindRefresh, a.ID, string(a.Role), a.Verified)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
