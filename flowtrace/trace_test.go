package flowtrace_test

import (
	"testing"

	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/stretchr/testify/require"
)

func TestSnapshotIsIndependentCopy(t *testing.T) {
	trace := flowtrace.New("uuid-1")
	trace.ClientID = "client-1"
	trace.Mark("sls_token", "OK")

	snap := trace.Snapshot()
	trace.Mark("sls_userinfo", "FAIL")
	trace.ClientID = "client-2"

	require.Equal(t, "client-1", snap.ClientID)
	require.Equal(t, map[string]string{"sls_token": "OK"}, snap.Markers)
}

func TestNilTraceSnapshot(t *testing.T) {
	var trace *flowtrace.Trace
	snap := trace.Snapshot()
	require.True(t, snap.IsZero())
}

func TestRepoRoundTrip(t *testing.T) {
	repo := flowtrace.NewInMemoryRepo()

	trace := flowtrace.New("uuid-2")
	require.NoError(t, repo.Upsert("state-abc", trace))

	got, err := repo.Get("state-abc")
	require.NoError(t, err)
	require.Equal(t, "uuid-2", got.AuthUUID)

	require.NoError(t, repo.Delete("state-abc"))
	_, err = repo.Get("state-abc")
	require.ErrorIs(t, err, flowtrace.TraceNotFoundErr)
}

func TestRepoRejectsEmptyState(t *testing.T) {
	repo := flowtrace.NewInMemoryRepo()
	require.ErrorIs(t, repo.Upsert("", flowtrace.New("x")), flowtrace.EmptyStateErr)
	_, err := repo.Get("")
	require.ErrorIs(t, err, flowtrace.EmptyStateErr)
}
