package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/webshots/pkg/history"
	"github.com/odvcencio/webshots/pkg/outcome"
)

func rec(collection, stepName string, out outcome.Outcome) history.Record {
	return history.Record{
		RunID:        "run-1",
		CollectionID: collection,
		StepName:     stepName,
		Outcome:      out,
	}
}

func TestComputeAggregatesPerStep(t *testing.T) {
	records := []history.Record{
		rec("000003", "landing", outcome.Duration(2)),
		rec("000027", "landing", outcome.Duration(4)),
		rec("000108", "landing", outcome.Duration(6)),
		rec("000109", "landing", outcome.Timeout()),
		rec("000003", "view-data", outcome.Duration(10)),
		rec("000027", "view-data", outcome.Errorf("no such element")),
	}

	s := Compute("run-1", records)
	assert.Equal(t, 4, s.Collections)
	assert.Equal(t, 6, s.Items)
	require.Len(t, s.Steps, 2)

	landing := s.Steps[0]
	assert.Equal(t, "landing", landing.Step)
	assert.Equal(t, 3, landing.Visits)
	assert.Equal(t, 1, landing.Timeouts)
	assert.Equal(t, 0, landing.Errors)
	assert.InDelta(t, 2, landing.Min, 1e-9)
	assert.InDelta(t, 6, landing.Max, 1e-9)
	assert.InDelta(t, 4, landing.Avg, 1e-9)
	assert.InDelta(t, 4, landing.Median, 1e-9)

	viewData := s.Steps[1]
	assert.Equal(t, "view-data", viewData.Step)
	assert.Equal(t, 1, viewData.Visits)
	assert.Equal(t, 1, viewData.Errors)
	assert.InDelta(t, 10, viewData.Median, 1e-9)
}

func TestComputeFailuresOnlyStepHasZeroDurations(t *testing.T) {
	s := Compute("run-1", []history.Record{
		rec("000003", "landing", outcome.Timeout()),
	})
	require.Len(t, s.Steps, 1)
	assert.Equal(t, 0, s.Steps[0].Visits)
	assert.Equal(t, 1, s.Steps[0].Timeouts)
	assert.Zero(t, s.Steps[0].Avg)
}

func TestPercentileNearestRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.InDelta(t, 5, percentile(sorted, 0.5), 1e-9)
	assert.InDelta(t, 9, percentile(sorted, 0.9), 1e-9)
	assert.InDelta(t, 1, percentile(sorted, 0), 1e-9)
	assert.InDelta(t, 10, percentile(sorted, 1), 1e-9)
	assert.Zero(t, percentile(nil, 0.5))
}

func TestRenderListsEveryStep(t *testing.T) {
	s := Compute("run-1", []history.Record{
		rec("000003", "landing", outcome.Duration(2)),
		rec("000003", "view-data", outcome.Timeout()),
	})
	out := Render(s)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "landing")
	assert.Contains(t, out, "view-data")
	assert.Contains(t, out, "1 collections, 2 items")
}

func TestRenderEmpty(t *testing.T) {
	out := Render(Compute("run-9", nil))
	assert.Contains(t, out, "no outcomes recorded")
}
