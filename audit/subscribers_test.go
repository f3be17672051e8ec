package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegisteredSubscriberWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sinks := audit.NewSinks(zerolog.New(&buf))
	bus := audit.NewBus(zerolog.Nop())
	audit.RegisterSubscribers(bus, sinks)

	bus.Publish(context.Background(), audit.ChannelTokenRevoked, audit.SenderTokenLifecycle, audit.TokenEvent{
		Action:  "revoked",
		TokenID: "tok-9",
	})

	lines := nonEmptyLines(buf.String())
	require.Len(t, lines, 1, "exactly one audit line per event")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "audit.authorization.token", entry["logger"])
	require.Contains(t, entry["message"], `"action":"revoked"`)
}

func TestIdentityProviderResponseGoesToSLSSink(t *testing.T) {
	var buf bytes.Buffer
	sinks := audit.NewSinks(zerolog.New(&buf))
	bus := audit.NewBus(zerolog.Nop())
	audit.RegisterSubscribers(bus, sinks)

	bus.Publish(context.Background(), audit.ChannelIdentityProviderResponse, audit.SenderIdentityClient,
		audit.IdentityProviderResponseEvent{UUID: "req-1", StatusCode: 400})

	lines := nonEmptyLines(buf.String())
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "audit.authorization.sls")
	require.Contains(t, lines[0], `\"code\":400`)
}

func TestFetchEventsAreScopedBySender(t *testing.T) {
	var buf bytes.Buffer
	sinks := audit.NewSinks(zerolog.New(&buf))
	bus := audit.NewBus(zerolog.Nop())
	audit.RegisterSubscribers(bus, sinks)

	bus.Publish(context.Background(), audit.ChannelPreFetch, audit.SenderResourceMediator,
		audit.FetchRequestEvent{UUID: "req-a", Path: "https://fhir.example/v1/Patient/123/"})
	bus.Publish(context.Background(), audit.ChannelPreFetch, audit.SenderIdentityClient,
		audit.FetchRequestEvent{UUID: "req-b", Path: "https://fhir.example/v1/Patient/", Trace: sampleTrace()})

	lines := nonEmptyLines(buf.String())
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "fhir_pre_fetch")
	require.Contains(t, lines[1], "fhir_auth_pre_fetch")
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
