package tokens_test

import (
	"context"
	"testing"
	"time"

	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/careaccess/go-fhir-gateway/tokens"
	"github.com/careaccess/go-fhir-gateway/tokens/repofake"
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
	repo      *repofake.FakeTokenRepo
	bus       *audit.Bus
	lifecycle *tokens.Lifecycle
	published []audit.Event
	channels  []audit.Channel
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		repo: repofake.NewFakeTokenRepo(),
		bus:  audit.NewBus(zerolog.Nop()),
	}
	for _, channel := range []audit.Channel{audit.ChannelTokenAuthorized, audit.ChannelTokenRevoked} {
		ch := channel
		sender := audit.SenderAuthorizationEndpoint
		if ch == audit.ChannelTokenRevoked {
			sender = audit.SenderTokenLifecycle
		}
		f.bus.Subscribe(ch, sender, func(_ context.Context, e audit.Event) {
			f.published = append(f.published, e)
			f.channels = append(f.channels, ch)
		})
	}

	lifecycle, err := tokens.NewLifecycle(f.repo, f.bus)
	require.NoError(t, err)
	f.lifecycle = lifecycle
	return f
}

func (f *testFixture) issue(t *testing.T, tokenType tokens.TokenType) *tokens.Token {
	t.Helper()
	token, err := f.lifecycle.Issue(context.Background(), tokenType, testUserID, testUsername,
		testAppID, testAppName, []string{"patient/Patient.read"}, time.Hour, flowtrace.Snapshot{})
	require.NoError(t, err)
	return token
}

func TestIssuePublishesTokenAuthorized(t *testing.T) {
	f := setupTestFixture(t)

	token := f.issue(t, tokens.TypeAccess)
	require.NotEmpty(t, token.ID)
	require.NotEmpty(t, token.Value)

	require.Len(t, f.published, 1)
	event, ok := f.published[0].(audit.TokenEvent)
	require.True(t, ok)
	require.Equal(t, "authorized", event.Action)
	require.Equal(t, token.ID, event.TokenID)
}

func TestRevokeFiresExactlyOncePerDelete(t *testing.T) {
	f := setupTestFixture(t)
	token := f.issue(t, tokens.TypeAccess)
	f.published = nil

	require.NoError(t, f.lifecycle.Revoke(context.Background(), token.ID, flowtrace.Snapshot{}))
	require.Len(t, f.published, 1)

	// Deleting the same token again is not found and must not re-audit.
	err := f.lifecycle.Revoke(context.Background(), token.ID, flowtrace.Snapshot{})
	require.ErrorIs(t, err, tokens.TokenNotFoundErr)
	require.Len(t, f.published, 1, "revoked event fires exactly once per delete")
}

func TestRevokeForUserAppCountsByType(t *testing.T) {
	f := setupTestFixture(t)
	f.issue(t, tokens.TypeAccess)
	f.issue(t, tokens.TypeAccess)
	f.issue(t, tokens.TypeRefresh)
	f.published = nil

	accessCnt, refreshCnt, err := f.lifecycle.RevokeForUserApp(context.Background(), testUserID, testAppID, flowtrace.Snapshot{})
	require.NoError(t, err)
	require.Equal(t, 2, accessCnt)
	require.Equal(t, 1, refreshCnt)
	require.Len(t, f.published, 3, "each deleted token audited individually")
}

func TestResolveBearer(t *testing.T) {
	f := setupTestFixture(t)
	token := f.issue(t, tokens.TypeAccess)

	resolved, err := f.lifecycle.ResolveBearer(token.Value)
	require.NoError(t, err)
	require.Equal(t, token.ID, resolved.ID)

	_, err = f.lifecycle.ResolveBearer("no-such-value")
	require.ErrorIs(t, err, tokens.TokenNotFoundErr)
}

func TestResolveBearerRejectsExpired(t *testing.T) {
	now := time.Now()
	repo := repofake.NewFakeTokenRepo()
	bus := audit.NewBus(zerolog.Nop())
	lifecycle, err := tokens.NewLifecycle(repo, bus, tokens.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)

	token, err := lifecycle.Issue(context.Background(), tokens.TypeAccess, testUserID, testUsername,
		testAppID, testAppName, nil, time.Minute, flowtrace.Snapshot{})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = lifecycle.ResolveBearer(token.Value)
	require.ErrorIs(t, err, tokens.TokenNotFoundErr)
}
