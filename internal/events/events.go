package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const Producer = "whatsapp-autoreply"

// Routing keys for outcome events.
const (
	KeyInbound     = "autoreply.inbound.v1"
	KeyStatus      = "autoreply.status.v1"
	KeyReplySent   = "autoreply.reply.sent.v1"
	KeyReplyFailed = "autoreply.reply.failed.v1"
)

type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

func NewEnvelope(eventType, correlationID string, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			CorrelationID: correlationID,
			Producer:      Producer,
			Time:          time.Now().UTC(),
			Type:          eventType,
		},
		Data: data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Envelope) error { return nil }

func (NopPublisher) Close() error { return nil }

// ReplyFailed is the payload of KeyReplyFailed.
type ReplyFailed struct {
	To         string `json:"to"`
	MessageID  string `json:"message_id"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Error      string `json:"error"`
}

// ReplySent is the payload of KeyReplySent.
type ReplySent struct {
	To              string `json:"to"`
	MessageID       string `json:"message_id"`
	RemoteMessageID string `json:"remote_message_id,omitempty"`
}
