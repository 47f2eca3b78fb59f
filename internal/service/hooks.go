package service

import (
	"context"
	"log/slog"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/client"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/events"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/model"
)

// PublishingHooks returns Dispatcher hooks that emit reply outcome events.
// Publish errors are logged and dropped.
func PublishingHooks(pub events.Publisher, logger *slog.Logger) (
	func(ctx context.Context, ev model.InboundEvent, to model.CanonicalAddress, res client.SendResult),
	func(ctx context.Context, ev model.InboundEvent, to model.CanonicalAddress, err error),
) {
	publish := func(ctx context.Context, key string, data any) {
		id := CorrelationID(ctx)
		if err := pub.Publish(ctx, key, events.NewEnvelope(key, id, data)); err != nil {
			logger.Warn("event publish failed", "key", key, "correlation_id", id, "error", err.Error())
		}
	}

	onSent := func(ctx context.Context, ev model.InboundEvent, to model.CanonicalAddress, res client.SendResult) {
		publish(ctx, events.KeyReplySent, events.ReplySent{
			To:              string(to),
			MessageID:       ev.MessageID,
			RemoteMessageID: res.MessageID,
		})
	}

	onFailed := func(ctx context.Context, ev model.InboundEvent, to model.CanonicalAddress, err error) {
		payload := events.ReplyFailed{
			To:        string(to),
			MessageID: ev.MessageID,
			Error:     err.Error(),
		}
		if sf, ok := client.AsSendFailure(err); ok {
			payload.HTTPStatus = sf.HTTPStatus
		}
		publish(ctx, events.KeyReplyFailed, payload)
	}

	return onSent, onFailed
}
