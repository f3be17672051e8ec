package permissions_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/careaccess/go-fhir-gateway/accounts"
	accountrepofake "github.com/careaccess/go-fhir-gateway/accounts/repofake"
	"github.com/careaccess/go-fhir-gateway/applications"
	"github.com/careaccess/go-fhir-gateway/permissions"
	"github.com/careaccess/go-fhir-gateway/tokens"
	"github.com/stretchr/testify/require"
)

const (
	testUserID = "user-1"
	testAppID  = "app-1"
	testFHIRID = "fhir-123"
)

// recordingCheck wraps a fixed decision and records whether it ran.
type recordingCheck struct {
	name     string
	decision permissions.Decision
	ran      *bool
}

func (c recordingCheck) Name() string { return c.name }

func (c recordingCheck) Evaluate(_ context.Context, _ *permissions.Input) permissions.Decision {
	*c.ran = true
	return c.decision
}

func TestDenyAtPositionKStopsEvaluation(t *testing.T) {
	const n = 5
	for k := 0; k < n; k++ {
		t.Run(fmt.Sprintf("deny at %d", k), func(t *testing.T) {
			ran := make([]bool, n)
			checks := make([]permissions.Check, n)
			for i := 0; i < n; i++ {
				decision := permissions.Allow()
				if i == k {
					decision = permissions.Deny("check", "denied")
				}
				checks[i] = recordingCheck{name: fmt.Sprintf("check-%d", i), decision: decision, ran: &ran[i]}
			}

			decision := permissions.NewChain(checks...).Evaluate(context.Background(), &permissions.Input{})
			require.False(t, decision.Allowed)

			for i := 0; i <= k; i++ {
				require.True(t, ran[i], "check %d should have run", i)
			}
			for i := k + 1; i < n; i++ {
				require.False(t, ran[i], "check %d must not run after a deny at %d", i, k)
			}
		})
	}
}

func TestChainAllowsWhenEveryCheckPasses(t *testing.T) {
	ran := make([]bool, 3)
	chain := permissions.NewChain(
		recordingCheck{name: "a", decision: permissions.Allow(), ran: &ran[0]},
		recordingCheck{name: "b", decision: permissions.Allow(), ran: &ran[1]},
		recordingCheck{name: "c", decision: permissions.Allow(), ran: &ran[2]},
	)
	decision := chain.Evaluate(context.Background(), &permissions.Input{})
	require.True(t, decision.Allowed)
	require.Equal(t, []bool{true, true, true}, ran)
}

type stubGrantChecker struct{ exists bool }

func (s stubGrantChecker) Exists(string, string) bool { return s.exists }

func readChainFixture(t *testing.T, grantExists bool) (*permissions.Chain, *permissions.Input) {
	t.Helper()

	crosswalks := accountrepofake.NewFakeCrosswalkRepo()
	require.NoError(t, crosswalks.Upsert(&accounts.Crosswalk{UserID: testUserID, FHIRID: testFHIRID}))

	chain := permissions.NewReadChain(crosswalks, stubGrantChecker{exists: grantExists}, []string{"Patient", "Coverage", "ExplanationOfBenefit"})
	in := &permissions.Input{
		Token:        &tokens.Token{ID: "tok-1", UserID: testUserID, Scopes: []string{"patient/Patient.read"}},
		User:         &accounts.User{ID: testUserID, Username: "jdoe"},
		Application:  &applications.Application{ID: testAppID, Name: "Sample App", Active: true},
		ResourceType: "Patient",
		ResourceID:   testFHIRID,
	}
	return chain, in
}

func TestReadChainAllowsWellFormedRequest(t *testing.T) {
	chain, in := readChainFixture(t, true)
	decision := chain.Evaluate(context.Background(), in)
	require.True(t, decision.Allowed)
}

func TestReadChainDenials(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(in *permissions.Input)
		reason string
	}{
		{"unauthenticated", func(in *permissions.Input) { in.Token = nil }, permissions.ReasonNotAuthenticated},
		{"inactive application", func(in *permissions.Input) { in.Application.Active = false }, permissions.ReasonApplicationInactive},
		{"unsupported resource", func(in *permissions.Input) { in.ResourceType = "Practitioner" }, permissions.ReasonResourceNotAllowed},
		{"foreign patient", func(in *permissions.Input) { in.ResourceID = "someone-else" }, permissions.ReasonCrosswalkMismatch},
		{"missing capability", func(in *permissions.Input) { in.Token.Scopes = nil }, permissions.ReasonMissingCapability},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain, in := readChainFixture(t, true)
			tc.mutate(in)
			decision := chain.Evaluate(context.Background(), in)
			require.False(t, decision.Allowed)
			require.Equal(t, tc.reason, decision.Reason)
		})
	}
}

func TestReadChainDeniesWithoutGrant(t *testing.T) {
	chain, in := readChainFixture(t, false)
	decision := chain.Evaluate(context.Background(), in)
	require.False(t, decision.Allowed)
	require.Equal(t, permissions.ReasonNoDataAccessGrant, decision.Reason)
}

func TestReadChainDeniesWithoutCrosswalk(t *testing.T) {
	crosswalks := accountrepofake.NewFakeCrosswalkRepo()
	chain := permissions.NewReadChain(crosswalks, stubGrantChecker{exists: true}, []string{"Patient"})

	in := &permissions.Input{
		Token:        &tokens.Token{ID: "tok-1", Scopes: []string{"patient/Patient.read"}},
		User:         &accounts.User{ID: testUserID},
		Application:  &applications.Application{ID: testAppID, Active: true},
		ResourceType: "Patient",
		ResourceID:   testFHIRID,
	}
	decision := chain.Evaluate(context.Background(), in)
	require.False(t, decision.Allowed)
	require.Equal(t, permissions.ReasonNoCrosswalk, decision.Reason)
}

func TestUnsupportedResourceIsDeniedBeforeIdentityChecks(t *testing.T) {
	// Resource check precedes crosswalk and grant checks: a request for an
	// unsupported type never consults the grant table.
	chain, in := readChainFixture(t, false)
	in.ResourceType = "Practitioner"
	decision := chain.Evaluate(context.Background(), in)
	require.Equal(t, permissions.ReasonResourceNotAllowed, decision.Reason)
}
