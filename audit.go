package crestauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types emitted by the engine.
const (
	AuditRegister          = "register"
	AuditLoginSuccess      = "login.success"
	AuditLoginFailure      = "login.failure"
	AuditLoginLocked       = "login.locked"
	AuditOTCIssued         = "otc.issued"
	AuditOTCVerified       = "otc.verified"
	AuditOTCFailed         = "otc.failed"
	AuditRefreshRotated    = "refresh.rotated"
	AuditRefreshReuse      = "refresh.reuse_detected"
	AuditLogout            = "logout"
	AuditAPIKeyCreated     = "apikey.created"
	AuditAPIKeyRevoked     = "apikey.revoked"
	AuditResetRequested    = "reset.requested"
	AuditResetConfirmed    = "reset.confirmed"
	AuditPasswordChanged   = "password.changed"
	AuditAccountStatusSet  = "account.status_set"
	AuditSSOLogin          = "sso.login"
	AuditSSOProvisioned    = "sso.provisioned"
	AuditNotificationError = "notification.error"
)

// AuditEvent is one security-relevant occurrence. Events never carry
// passwords, codes, tokens, or key plaintext.
type AuditEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     string            `json:"event_type"`
	PrincipalID   string            `json:"principal_id,omitempty"`
	IP            string            `json:"ip,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Success       bool              `json:"success"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events from the dispatcher. Emit must not panic;
// slow sinks only delay the dispatcher goroutine, never engine flows.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink exposes events on a channel, mainly for tests and embedded
// consumers.
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

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
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
