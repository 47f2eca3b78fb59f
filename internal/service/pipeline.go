package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/cache"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/client"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/events"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/identity"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/model"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/normalizer"
)

// Outcome is the terminal state of one webhook task.
type Outcome string

const (
	OutcomeNoEvent    Outcome = "no_event"
	OutcomeStatus     Outcome = "status"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeSelf       Outcome = "self"
	OutcomeNotAllowed Outcome = "not_allowed"
	OutcomeReplied    Outcome = "replied"
	OutcomeFailed     Outcome = "failed"
	OutcomePanic      Outcome = "panic"
)

// Pipeline runs the work that follows the webhook acknowledgment:
// normalize, resolve the sender, reply. It holds no per-request state.
type Pipeline struct {
	normalizer *normalizer.Normalizer
	resolver   *identity.Resolver
	dispatcher *Dispatcher
	guard      cache.DeliveryGuard
	publisher  events.Publisher
	self       model.CanonicalAddress
	log        *slog.Logger
}

type PipelineOption func(*Pipeline)

func WithDeliveryGuard(g cache.DeliveryGuard) PipelineOption {
	return func(p *Pipeline) { p.guard = g }
}

func WithPublisher(pub events.Publisher) PipelineOption {
	return func(p *Pipeline) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithSelfAddress enables loop prevention. The address is expected to be
// canonicalized with the same resolver.
func WithSelfAddress(addr model.CanonicalAddress) PipelineOption {
	return func(p *Pipeline) { p.self = addr }
}

func NewPipeline(
	n *normalizer.Normalizer,
	r *identity.Resolver,
	d *Dispatcher,
	logger *slog.Logger,
	opts ...PipelineOption,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		normalizer: n,
		resolver:   r,
		dispatcher: d,
		publisher:  events.NopPublisher{},
		log:        logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process never panics and never returns an error; every failure ends up in
// the log.
func (p *Pipeline) Process(ctx context.Context, correlationID string, body []byte) (outcome Outcome) {
	log := p.log.With("correlation_id", correlationID)
	ctx = WithCorrelationID(ctx, correlationID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("webhook task panic recovered", "panic", r)
			outcome = OutcomePanic
		}
	}()

	ev := p.normalizer.Decode(body)
	switch ev.Kind {
	case model.StatusUpdate:
		return p.handleStatus(ctx, log, *ev.Status)
	case model.InboundMessage:
		return p.handleInbound(ctx, log, *ev.Inbound)
	default:
		log.Info("no message in payload (ignored)")
		return OutcomeNoEvent
	}
}

func (p *Pipeline) handleStatus(ctx context.Context, log *slog.Logger, st model.StatusEvent) Outcome {
	if !p.claim(ctx, log, "status:"+st.ID+":"+string(st.Status), st.ID != "") {
		log.Info("duplicate status update ignored", "id", st.ID, "status", st.Status)
		return OutcomeDuplicate
	}

	log.Info("status update",
		"id", st.ID,
		"status", st.Status,
		"recipient_id", st.RecipientID,
		"timestamp", st.Timestamp,
	)
	p.publish(ctx, log, events.KeyStatus, st)
	return OutcomeStatus
}

func (p *Pipeline) handleInbound(ctx context.Context, log *slog.Logger, in model.InboundEvent) Outcome {
	if !p.claim(ctx, log, "msg:"+in.MessageID, in.MessageID != "") {
		log.Info("duplicate message ignored", "id", in.MessageID)
		return OutcomeDuplicate
	}

	log.Info("incoming message",
		"wa_id", in.SenderID,
		"from", in.RawFrom,
		"text", in.Text,
		"id", in.MessageID,
		"type", in.MessageType,
		"timestamp", in.Timestamp,
	)
	p.publish(ctx, log, events.KeyInbound, in)

	to := p.resolver.Resolve(in)
	if p.self != "" && to == p.self {
		log.Info("message from self address, not replying", "to", to)
		return OutcomeSelf
	}

	res, err := p.dispatcher.Reply(ctx, to, in)
	switch {
	case err == nil:
		log.Info("reply sent", "to", to, "remote_message_id", res.MessageID, "response", res.Data)
		return OutcomeReplied
	case errors.Is(err, ErrRecipientNotAllowed):
		log.Info("reply suppressed by allow policy", "to", to)
		return OutcomeNotAllowed
	}

	if sf, ok := client.AsSendFailure(err); ok {
		log.Error("reply send failed", "to", to, "status", sf.HTTPStatus, "body", sf.RawBody)
	} else if client.IsConfigurationError(err) {
		log.Error("reply send failed", "to", to, "reason", "configuration", "error", err.Error())
	} else {
		log.Error("reply send failed", "to", to, "error", err.Error())
	}
	return OutcomeFailed
}

// claim consults the delivery guard. A guard error fails open.
func (p *Pipeline) claim(ctx context.Context, log *slog.Logger, key string, hasID bool) bool {
	if p.guard == nil || !hasID {
		return true
	}
	first, err := p.guard.Claim(ctx, key)
	if err != nil {
		log.Warn("delivery guard unavailable, processing anyway", "key", key, "error", err.Error())
		return true
	}
	return first
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, key string, data any) {
	env := events.NewEnvelope(key, CorrelationID(ctx), data)
	if err := p.publisher.Publish(ctx, key, env); err != nil {
		log.Warn("event publish failed", "key", key, "error", err.Error())
	}
}
