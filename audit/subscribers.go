package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Sinks holds the three named audit log channels. Sink transport (file,
// stream, remote collector) is the caller's concern; each sink receives one
// rendered string per event.
type Sinks struct {
	Token zerolog.Logger // token / authorization audit
	SLS   zerolog.Logger // identity-provider audit
	FHIR  zerolog.Logger // FHIR-fetch audit
}

// NewSinks derives the three audit loggers from a base logger.
func NewSinks(base zerolog.Logger) Sinks {
	return Sinks{
		Token: base.With().Str("logger", "audit.authorization.token").Logger(),
		SLS:   base.With().Str("logger", "audit.authorization.sls").Logger(),
		FHIR:  base.With().Str("logger", "audit.data.fhir").Logger(),
	}
}

// RegisterSubscribers builds the (channel, sender) subscriber table. Called
// once at startup, before any request is served.
func RegisterSubscribers(bus *Bus, sinks Sinks) {
	// Authorization lifecycle: token issue / consent outcome.
	bus.Subscribe(ChannelTokenAuthorized, SenderAuthorizationEndpoint, logLine(sinks.Token, RenderEvent))
	bus.Subscribe(ChannelAppAuthorized, SenderAuthorizationEndpoint, logLine(sinks.Token, RenderEvent))

	// Revocations, whatever deleted the credential.
	bus.Subscribe(ChannelTokenRevoked, SenderTokenLifecycle, logLine(sinks.Token, RenderEvent))
	bus.Subscribe(ChannelGrantRevoked, SenderGrantLifecycle, logLine(sinks.Token, RenderEvent))

	// Resource fetches. The identity client's fetches happen mid-authorization
	// and use the trace-carrying serializer; the mediator's do not.
	bus.Subscribe(ChannelPreFetch, SenderResourceMediator, logLine(sinks.FHIR, RenderEvent))
	bus.Subscribe(ChannelPostFetch, SenderResourceMediator, logLine(sinks.FHIR, RenderEvent))
	bus.Subscribe(ChannelPreFetch, SenderIdentityClient, logLine(sinks.FHIR, RenderAuthFetchEvent))
	bus.Subscribe(ChannelPostFetch, SenderIdentityClient, logLine(sinks.FHIR, RenderAuthFetchEvent))

	// Identity provider token exchange.
	bus.Subscribe(ChannelIdentityProviderResponse, SenderIdentityClient, logLine(sinks.SLS, RenderEvent))
}

// logLine renders one event and writes exactly one line to the sink. A
// degraded render is still logged, as a warning, so no audit event is ever
// silently dropped.
func logLine(sink zerolog.Logger, render func(Event) string) Handler {
	return func(_ context.Context, event Event) {
		result := CaptureRender(func() string { return render(event) })
		if result.Degraded {
			sink.Warn().Bool("degraded", true).Msg(result.Output)
			return
		}
		sink.Info().Msg(result.Output)
	}
}
