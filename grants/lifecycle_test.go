package grants_test

import (
	"context"
	"testing"
	"time"

	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/careaccess/go-fhir-gateway/grants"
	grantrepofake "github.com/careaccess/go-fhir-gateway/grants/repofake"
	"github.com/careaccess/go-fhir-gateway/tokens"
	tokenrepofake "github.com/careaccess/go-fhir-gateway/tokens/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testUserID   = "user-1"
	testUsername = "jdoe"
	testAppID    = "app-1"
	testAppName  = "Sample App"
)

type testFixture struct {
	grantRepo *grantrepofake.FakeGrantRepo
	tokenRepo *tokenrepofake.FakeTokenRepo
	bus       *audit.Bus
	tokens    *tokens.Lifecycle
	grants    *grants.Lifecycle

	grantEvents []audit.GrantEvent
	tokenEvents []audit.TokenEvent
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		grantRepo: grantrepofake.NewFakeGrantRepo(),
		tokenRepo: tokenrepofake.NewFakeTokenRepo(),
		bus:       audit.NewBus(zerolog.Nop()),
	}
	f.bus.Subscribe(audit.ChannelGrantRevoked, audit.SenderGrantLifecycle, func(_ context.Context, e audit.Event) {
		f.grantEvents = append(f.grantEvents, e.(audit.GrantEvent))
	})
	f.bus.Subscribe(audit.ChannelTokenRevoked, audit.SenderTokenLifecycle, func(_ context.Context, e audit.Event) {
		f.tokenEvents = append(f.tokenEvents, e.(audit.TokenEvent))
	})

	tokenLifecycle, err := tokens.NewLifecycle(f.tokenRepo, f.bus)
	require.NoError(t, err)
	f.tokens = tokenLifecycle

	grantLifecycle, err := grants.NewLifecycle(f.grantRepo, tokenLifecycle, f.bus)
	require.NoError(t, err)
	f.grants = grantLifecycle
	return f
}

func (f *testFixture) authorize(t *testing.T) *grants.AuthorizeResult {
	t.Helper()
	result, err := f.grants.Authorize(context.Background(), testUserID, testUsername, testAppID, testAppName,
		[]string{"patient/Patient.read"}, flowtrace.Snapshot{})
	require.NoError(t, err)
	return result
}

func TestAuthorizeCreatesGrant(t *testing.T) {
	f := setupTestFixture(t)

	result := f.authorize(t)
	require.NotNil(t, result.Grant)
	require.Zero(t, result.GrantDeleteCount)
	require.Zero(t, result.AccessTokenDeleteCount)
	require.True(t, f.grants.Exists(testUserID, testAppID))
}

func TestReauthorizeReportsCleanupCounts(t *testing.T) {
	f := setupTestFixture(t)
	f.authorize(t)

	_, err := f.tokens.Issue(context.Background(), tokens.TypeAccess, testUserID, testUsername,
		testAppID, testAppName, nil, time.Hour, flowtrace.Snapshot{})
	require.NoError(t, err)
	_, err = f.tokens.Issue(context.Background(), tokens.TypeRefresh, testUserID, testUsername,
		testAppID, testAppName, nil, time.Hour, flowtrace.Snapshot{})
	require.NoError(t, err)

	result := f.authorize(t)
	require.Equal(t, 1, result.GrantDeleteCount)
	require.Equal(t, 1, result.AccessTokenDeleteCount)
	require.Equal(t, 1, result.RefreshTokenDeleteCount)
}

func TestRevokePublishesGrantRevokedOnce(t *testing.T) {
	f := setupTestFixture(t)
	result := f.authorize(t)

	require.NoError(t, f.grants.Revoke(context.Background(), result.Grant.ID, flowtrace.Snapshot{}))
	require.Len(t, f.grantEvents, 1)
	require.Equal(t, "revoked", f.grantEvents[0].Action)
	require.Equal(t, result.Grant.ID, f.grantEvents[0].GrantID)

	err := f.grants.Revoke(context.Background(), result.Grant.ID, flowtrace.Snapshot{})
	require.ErrorIs(t, err, grants.GrantNotFoundErr)
	require.Len(t, f.grantEvents, 1, "grant-revoked fires exactly once per delete")
}

func TestRevokeCascadesTokenRevocation(t *testing.T) {
	f := setupTestFixture(t)
	result := f.authorize(t)

	_, err := f.tokens.Issue(context.Background(), tokens.TypeAccess, testUserID, testUsername,
		testAppID, testAppName, nil, time.Hour, flowtrace.Snapshot{})
	require.NoError(t, err)

	require.NoError(t, f.grants.Revoke(context.Background(), result.Grant.ID, flowtrace.Snapshot{}))
	require.Len(t, f.tokenEvents, 1, "cascaded token deletion is audited")
	require.Equal(t, "revoked", f.tokenEvents[0].Action)
}
