package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/webshots/pkg/outcome"
	"github.com/odvcencio/webshots/pkg/step"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndReadRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordOutcome(ctx, "run-1",
		step.Item{CollectionID: "000003", StepName: "landing"}, outcome.Duration(4.2)))
	require.NoError(t, s.RecordOutcome(ctx, "run-1",
		step.Item{CollectionID: "000003", StepName: "view-data"}, outcome.Timeout()))
	require.NoError(t, s.RecordOutcome(ctx, "run-2",
		step.Item{CollectionID: "000027", StepName: "landing"}, outcome.Errorf("no such element")))

	records, err := s.RunOutcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "landing", records[0].StepName)
	assert.Equal(t, outcome.KindDuration, records[0].Outcome.Kind)
	assert.InDelta(t, 4.2, records[0].Outcome.Seconds, 1e-9)
	assert.Equal(t, outcome.KindTimeout, records[1].Outcome.Kind)
	assert.False(t, records[0].RecordedAt.IsZero())
}

func TestLatestRunID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LatestRunID(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, s.RecordOutcome(ctx, "run-1",
		step.Item{CollectionID: "000003", StepName: "landing"}, outcome.Duration(1)))
	require.NoError(t, s.RecordOutcome(ctx, "run-2",
		step.Item{CollectionID: "000003", StepName: "landing"}, outcome.Duration(2)))

	runID, err := s.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", runID)
}

func TestCollectionHistoryNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	item := step.Item{CollectionID: "000108", StepName: "landing"}
	require.NoError(t, s.RecordOutcome(ctx, "run-1", item, outcome.Duration(10)))
	require.NoError(t, s.RecordOutcome(ctx, "run-2", item, outcome.Duration(8)))
	require.NoError(t, s.RecordOutcome(ctx, "run-2",
		step.Item{CollectionID: "000003", StepName: "landing"}, outcome.Duration(3)))

	records, err := s.CollectionHistory(ctx, "000108")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-2", records[0].RunID)
	assert.Equal(t, "run-1", records[1].RunID)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
