// Package audit implements the gateway's audit pipeline: a typed in-process
// publish/subscribe bus keyed by (channel, sender), one serializer per domain
// event, and log-sink subscribers that render events into canonical JSON
// lines. The pipeline is side-effect free with respect to the primary request:
// a failing subscriber degrades to a captured-trace log line and never aborts
// the flow that published the event.
package audit

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Channel names an audit event stream.
type Channel string

const (
	ChannelTokenAuthorized          Channel = "token-authorized"
	ChannelAppAuthorized            Channel = "app-authorized"
	ChannelTokenRevoked             Channel = "token-revoked"
	ChannelGrantRevoked             Channel = "grant-revoked"
	ChannelPreFetch                 Channel = "pre-fetch"
	ChannelPostFetch                Channel = "post-fetch"
	ChannelIdentityProviderResponse Channel = "identity-provider-response"
)

// Sender identifies the originating component of an event. The same channel
// can carry differently-shaped payloads depending on origin; subscribers
// register per (channel, sender) pair.
type Sender string

const (
	SenderAuthorizationEndpoint Sender = "authorization-endpoint"
	SenderTokenLifecycle        Sender = "token-lifecycle"
	SenderGrantLifecycle        Sender = "grant-lifecycle"
	SenderResourceMediator      Sender = "resource-mediator"
	SenderIdentityClient        Sender = "identity-client"
)

// Handler consumes one published event.
type Handler func(ctx context.Context, event Event)

type subscription struct {
	channel Channel
	sender  Sender
}

// Bus is the audit event bus. The subscriber table is populated once at
// startup by the composition root and is read-only thereafter, so Publish
// takes no locks. Subscribe must not be called after serving starts.
type Bus struct {
	logger   zerolog.Logger
	handlers map[subscription][]Handler
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger:   logger,
		handlers: make(map[subscription][]Handler),
	}
}

// Subscribe registers a handler for the (channel, sender) pair. Handlers run
// in registration order.
func (b *Bus) Subscribe(channel Channel, sender Sender, handler Handler) {
	key := subscription{channel: channel, sender: sender}
	b.handlers[key] = append(b.handlers[key], handler)
}

// Publish delivers the event synchronously to every handler registered for
// the (channel, sender) pair, in registration order. Publish blocks until all
// handlers have run. A panicking handler is recovered and logged; it never
// propagates to the publisher.
func (b *Bus) Publish(ctx context.Context, channel Channel, sender Sender, event Event) {
	key := subscription{channel: channel, sender: sender}
	for _, handler := range b.handlers[key] {
		b.deliver(ctx, channel, sender, handler, event)
	}
}

func (b *Bus) deliver(ctx context.Context, channel Channel, sender Sender, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("channel", string(channel)).
				Str("sender", string(sender)).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("audit subscriber panicked")
		}
	}()
	handler(ctx, event)
}
