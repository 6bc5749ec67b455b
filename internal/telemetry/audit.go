// Package telemetry publishes the client's session audit trail.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Audit actions recorded for a session.
const (
	ActionLogin        = "login"
	ActionConnected    = "connected"
	ActionDisconnected = "disconnected"
	ActionReconnected  = "reconnected"
	ActionRoomJoined   = "room_joined"
	ActionUploadFailed = "upload_failed"
	ActionLogout       = "logout"
)

const publishTimeout = 2 * time.Second

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         *zap.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	ClientID      string       `json:"client_id"`
	Username      string       `json:"username,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Action string `json:"action"`
	Text   string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log *zap.Logger) *AuditEmitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

// Emit publishes one audit record. Failures are logged and never returned:
// the audit trail must not affect the chat session.
func (e *AuditEmitter) Emit(ctx context.Context, level, action, text, clientID, username string) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "client_audit",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     uuid.NewString(),
		ClientID:      clientID,
		Username:      username,
		Payload: AuditPayload{
			Level:  level,
			Action: action,
			Text:   text,
		},
	}
	e.log.Debug("audit emit",
		zap.String("action", action),
		zap.String("level", level),
		zap.String("request_id", envelope.RequestID))

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(ctx, e.routingKey+"."+action, envelope); err != nil {
		e.log.Warn("audit publish failed", zap.String("action", action), zap.Error(err))
	}
}
