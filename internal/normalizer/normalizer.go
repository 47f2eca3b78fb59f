package normalizer

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/model"
)

// Normalizer turns raw webhook bodies into a typed model.Event. It never
// returns an error: anything it cannot read is model.NoEvent.
type Normalizer struct {
	log *slog.Logger
}

func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{log: logger}
}

func (n *Normalizer) Decode(body []byte) model.Event {
	var p model.WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		// encoding/json keeps filling the struct past a type mismatch, so
		// whatever was well-typed is still usable.
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			n.log.Info("webhook payload not decodable, ignored", "error", err.Error())
			return model.None()
		}
		n.log.Warn("webhook payload has mistyped fields, reading the rest", "error", err.Error())
	}
	return n.Normalize(&p)
}

// Normalize reads entry[0].changes[0].value. Messages take precedence over
// statuses; elements past the first are ignored.
func (n *Normalizer) Normalize(p *model.WebhookPayload) model.Event {
	entry, ok := p.FirstEntry()
	if !ok {
		return model.None()
	}
	n.warnExtra("entry", len(p.Entry))

	change, ok := entry.FirstChange()
	if !ok {
		return model.None()
	}
	n.warnExtra("changes", len(entry.Changes))

	value, ok := change.LookupValue()
	if !ok {
		return model.None()
	}

	if msg, ok := value.FirstMessage(); ok {
		n.warnExtra("messages", len(value.Messages))
		return model.Inbound(inboundFrom(value, msg))
	}

	if st, ok := value.FirstStatus(); ok {
		n.warnExtra("statuses", len(value.Statuses))
		status := model.DeliveryStatus(st.Status)
		if !status.Known() {
			n.log.Warn("unknown delivery status", "status", st.Status, "id", st.ID)
		}
		return model.StatusOf(model.StatusEvent{
			ID:          st.ID,
			Status:      status,
			RecipientID: st.RecipientID,
			Timestamp:   string(st.Timestamp),
		})
	}

	return model.None()
}

func inboundFrom(value *model.ChangeValue, msg *model.Message) model.InboundEvent {
	ev := model.InboundEvent{
		RawFrom:     msg.From,
		Text:        msg.TextBody(),
		MessageType: msg.Type,
		MessageID:   msg.ID,
		Timestamp:   string(msg.Timestamp),
	}
	if contact, ok := value.FirstContact(); ok {
		ev.SenderID = contact.WaID
	}
	return ev
}

func (n *Normalizer) warnExtra(field string, count int) {
	if count > 1 {
		n.log.Warn("webhook payload carries more than one element, only the first is handled",
			"field", field, "count", count)
	}
}
