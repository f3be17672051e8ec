package audit_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/stretchr/testify/require"
)

const (
	secretBearerToken = "opaque-bearer-token-value-9f2c"
	secretClientValue = "client-secret-value-77aa"
)

func sampleTrace() flowtrace.Snapshot {
	trace := flowtrace.New("auth-uuid-1")
	trace.ClientID = "client-1"
	trace.AppID = "app-1"
	trace.AppName = "Sample App"
	trace.Mark("sls_token", "OK")
	return trace.Snapshot()
}

func allSampleEvents() []audit.Event {
	return []audit.Event{
		audit.TokenEvent{
			Action:    "authorized",
			TokenID:   "tok-1",
			TokenType: "access",
			UserID:    "user-1",
			Username:  "jdoe",
			AppID:     "app-1",
			AppName:   "Sample App",
			Trace:     sampleTrace(),
		},
		audit.AppAuthorizedEvent{
			AuthStatus:     "OK",
			AuthStatusCode: 200,
			UserID:         "user-1",
			Username:       "jdoe",
			Crosswalk: audit.CrosswalkSummary{
				ID:         "cw-1",
				HICNHash:   "deadbeef",
				MBIHash:    "cafebabe",
				FHIRID:     "fhir-123",
				UserIDType: "M",
			},
			AppID:   "app-1",
			AppName: "Sample App",
			Scopes:  []string{"patient/Patient.read"},
			Allow:   true,
			Trace:   sampleTrace(),
		},
		audit.GrantEvent{
			Action:  "revoked",
			GrantID: "grant-1",
			UserID:  "user-1",
			AppID:   "app-1",
			AppName: "Sample App",
		},
		audit.FetchRequestEvent{
			UUID:    "req-1",
			Path:    "https://fhir.example/v1/Patient/123/",
			StartAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Trace:   sampleTrace(),
		},
		audit.FetchResponseEvent{
			UUID:       "req-1",
			Path:       "https://fhir.example/v1/Patient/123/",
			StatusCode: 200,
			Elapsed:    42 * time.Millisecond,
			Trace:      sampleTrace(),
		},
		audit.IdentityProviderResponseEvent{
			UUID:       "req-2",
			Path:       "https://sls.example/token",
			StatusCode: 400,
			Elapsed:    10 * time.Millisecond,
			Trace:      sampleTrace(),
		},
	}
}

func TestRenderEventProducesValidJSONLines(t *testing.T) {
	for _, event := range allSampleEvents() {
		out := audit.RenderEvent(event)
		require.NotEmpty(t, out)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &decoded), "render output must be one JSON line: %s", out)
		require.NotEmpty(t, decoded["type"], "every line carries a type tag")
	}
}

func TestRenderedOutputNeverContainsSecrets(t *testing.T) {
	// Events are built from a flow whose surrounding request knew the bearer
	// token and client secret; the audit projections must not.
	for _, event := range allSampleEvents() {
		out := audit.RenderEvent(event)
		require.NotContains(t, out, secretBearerToken)
		require.NotContains(t, out, secretClientValue)
	}
}

func TestAuthFetchSerializerCarriesTrace(t *testing.T) {
	event := audit.FetchRequestEvent{
		UUID:  "req-3",
		Path:  "https://fhir.example/v1/Patient/",
		Trace: sampleTrace(),
	}

	plain := audit.RenderEvent(event)
	forAuth := audit.RenderAuthFetchEvent(event)

	require.NotContains(t, plain, "auth-uuid-1", "mediator-shaped render omits the trace")
	require.Contains(t, forAuth, "auth-uuid-1")
	require.Contains(t, forAuth, `"type":"fhir_auth_pre_fetch"`)
	require.Contains(t, plain, `"type":"fhir_pre_fetch"`)
}

func TestCaptureRenderRecoversPanics(t *testing.T) {
	result := audit.CaptureRender(func() string {
		panic("renderer bug")
	})

	require.True(t, result.Degraded)
	require.NotEmpty(t, result.Output)
	require.True(t, strings.Contains(result.Output, "renderer bug"))
}

func TestCaptureRenderRejectsEmptyOutput(t *testing.T) {
	result := audit.CaptureRender(func() string { return "   " })
	require.True(t, result.Degraded)
	require.NotEmpty(t, result.Output)
}

func TestCaptureRenderPassesThroughGoodOutput(t *testing.T) {
	result := audit.CaptureRender(func() string { return `{"type":"AccessToken"}` })
	require.False(t, result.Degraded)
	require.Equal(t, `{"type":"AccessToken"}`, result.Output)
}

func TestRenderEventPanicsOnUnknownTypeAndIsRecoverable(t *testing.T) {
	result := audit.CaptureRender(func() string { return audit.RenderEvent(nil) })
	require.True(t, result.Degraded)
	require.NotEmpty(t, result.Output)
}
