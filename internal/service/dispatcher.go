package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/client"
	"github.com/LeventeLantos/whatsapp-autoreply/internal/model"
)

var ErrRecipientNotAllowed = errors.New("recipient not allowed by policy")

type MessageClient interface {
	SendMessage(ctx context.Context, msg model.OutboundMessage) (client.SendResult, error)
}

// AllowPolicy decides whether a reply may be sent to an address.
type AllowPolicy func(to model.CanonicalAddress) bool

func AllowAll(model.CanonicalAddress) bool { return true }

// AllowOnly restricts replies to a single sandbox address.
func AllowOnly(addr model.CanonicalAddress) AllowPolicy {
	return func(to model.CanonicalAddress) bool {
		return to == addr
	}
}

type ReplyOptions struct {
	Prefix string
	// Template, when set, replaces the free-text echo.
	Template *model.TemplateRef
}

type Dispatcher struct {
	client MessageClient
	opts   ReplyOptions
	allow  AllowPolicy

	onSent   func(ctx context.Context, ev model.InboundEvent, to model.CanonicalAddress, res client.SendResult)
	onFailed func(ctx context.Context, ev model.InboundEvent, to model.CanonicalAddress, err error)
}

func NewDispatcher(c MessageClient, opts ReplyOptions) *Dispatcher {
	return &Dispatcher{
		client: c,
		opts:   opts,
		allow:  AllowAll,
	}
}

func (d *Dispatcher) WithAllowPolicy(policy AllowPolicy) *Dispatcher {
	if policy == nil {
		policy = AllowAll
	}
	d.allow = policy
	return d
}

func (d *Dispatcher) WithHooks(
	onSent func(ctx context.Context, ev model.InboundEvent, to model.CanonicalAddress, res client.SendResult),
	onFailed func(ctx context.Context, ev model.InboundEvent, to model.CanonicalAddress, err error),
) *Dispatcher {
	d.onSent = onSent
	d.onFailed = onFailed
	return d
}

func (d *Dispatcher) Compose(to model.CanonicalAddress, ev model.InboundEvent) model.OutboundMessage {
	if d.opts.Template != nil {
		return model.NewTemplateMessage(to, *d.opts.Template)
	}
	return model.NewTextMessage(to, fmt.Sprintf("%s \"%s\"", d.opts.Prefix, ev.Text))
}

// Reply makes exactly one send attempt. Failures are returned to the caller
// unlogged; a *client.SendFailure carries the platform status and body.
func (d *Dispatcher) Reply(ctx context.Context, to model.CanonicalAddress, ev model.InboundEvent) (client.SendResult, error) {
	if !d.allow(to) {
		return client.SendResult{}, ErrRecipientNotAllowed
	}

	res, err := d.client.SendMessage(ctx, d.Compose(to, ev))
	if err != nil {
		if d.onFailed != nil {
			d.onFailed(ctx, ev, to, err)
		}
		return client.SendResult{}, err
	}

	if d.onSent != nil {
		d.onSent(ctx, ev, to, res)
	}
	return res, nil
}
