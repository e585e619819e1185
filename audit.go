package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditAction enumerates the security-relevant events the core records.
type AuditAction string

const (
	AuditUserCreated            AuditAction = "USER_CREATED"
	AuditLogin                  AuditAction = "LOGIN"
	AuditLoginFailed            AuditAction = "LOGIN_FAILED"
	AuditLogout                 AuditAction = "LOGOUT"
	AuditTokenRefreshed         AuditAction = "TOKEN_REFRESHED"
	AuditEmailVerified          AuditAction = "EMAIL_VERIFIED"
	AuditVerificationResent     AuditAction = "VERIFICATION_RESENT"
	AuditPasswordResetRequested AuditAction = "PASSWORD_RESET_REQUESTED"
	AuditPasswordResetCompleted AuditAction = "PASSWORD_RESET_COMPLETED"
	AuditAccountLocked          AuditAction = "ACCOUNT_LOCKED"
	AuditAccountUnlocked        AuditAction = "ACCOUNT_UNLOCKED"
	AuditStatusChanged          AuditAction = "STATUS_CHANGED"
	AuditRateLimited            AuditAction = "RATE_LIMITED"
)

// AuditEvent is one append-only record. AccountID is empty for pre-auth
// failures (unknown identifier, malformed token).
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    AuditAction       `json:"action"`
	AccountID string            `json:"account_id,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events from the Engine's audit dispatcher.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink silently discards all events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink is a buffered channel-based [AuditSink], mainly for tests and
// in-process consumers.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON-encoded event per line to an [io.Writer].
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
