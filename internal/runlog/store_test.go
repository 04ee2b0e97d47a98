package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewRunID_SortsByCreation(t *testing.T) {
	a := NewRunID()
	time.Sleep(2 * time.Millisecond)
	b := NewRunID()
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "ULIDs order by creation time")
}

func TestStore_RunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run := Run{
		ID:        NewRunID(),
		Suite:     "bounds-sweep",
		Analyzer:  "/opt/libra",
		Input:     "census.py",
		Script:    "census-spec.py",
		StartedAt: time.Now(),
	}
	require.NoError(t, store.BeginRun(ctx, run))

	require.NoError(t, store.RecordInvocation(ctx, InvocationRecord{
		RunID: run.ID, Seq: 0, Name: "deeppoly_cpu4",
		ParamsJSON: `{"domain":"deeppoly","cpu":4}`,
		LogPath:    "/logs/deeppoly_cpu4.log",
		Outcome:    "ok", ExitCode: 0, DurationMS: 1200,
	}))
	require.NoError(t, store.RecordInvocation(ctx, InvocationRecord{
		RunID: run.ID, Seq: 1, Name: "deeppoly_symbolic_cpu4",
		ParamsJSON: `{"domain":"deeppoly_symbolic","cpu":4}`,
		LogPath:    "/logs/deeppoly_symbolic_cpu4.log",
		Outcome:    "analyzer-failed", ExitCode: 2, DurationMS: 800,
	}))

	require.NoError(t, store.FinishRun(ctx, run.ID, "failed", time.Now(), 2, 1, 0))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "bounds-sweep", got.Suite)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Failed)
	assert.False(t, got.FinishedAt.IsZero())

	recs, err := store.Invocations(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 0, recs[0].Seq)
	assert.Equal(t, "deeppoly_cpu4", recs[0].Name)
	assert.Equal(t, "ok", recs[0].Outcome)
	assert.Equal(t, 1, recs[1].Seq)
	assert.Equal(t, 2, recs[1].ExitCode)
}

func TestStore_RecentRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id := NewRunID()
		ids = append(ids, id)
		require.NoError(t, store.BeginRun(ctx, Run{
			ID: id, Suite: "s", Analyzer: "a", Input: "i", Script: "sc",
			StartedAt: time.Now(),
		}))
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestStore_FinishUnknownRun(t *testing.T) {
	store := openTestStore(t)
	err := store.FinishRun(context.Background(), "01NOPE", "completed", time.Now(), 0, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStore_DuplicateSeqRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	id := NewRunID()
	require.NoError(t, store.BeginRun(ctx, Run{ID: id, Suite: "s", Analyzer: "a", Input: "i", Script: "sc", StartedAt: time.Now()}))

	rec := InvocationRecord{RunID: id, Seq: 0, Name: "x", ParamsJSON: "{}", LogPath: "p", Outcome: "ok"}
	require.NoError(t, store.RecordInvocation(ctx, rec))
	require.Error(t, store.RecordInvocation(ctx, rec), "(run_id, seq) is the primary key")
}

func TestStore_InvocationsOfUnknownRunIsEmpty(t *testing.T) {
	store := openTestStore(t)
	recs, err := store.Invocations(context.Background(), "01NOPE")
	require.NoError(t, err)
	assert.Empty(t, recs)
}
