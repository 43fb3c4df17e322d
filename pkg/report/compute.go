// Package report aggregates recorded outcomes into per-step timing
// statistics and renders them for the terminal.
package report

import (
	"sort"

	"github.com/odvcencio/webshots/pkg/history"
	"github.com/odvcencio/webshots/pkg/outcome"
)

// StepStats aggregates one step across all collections. Duration
// statistics cover successful visits only.
type StepStats struct {
	Step     string
	Visits   int
	Timeouts int
	Errors   int

	Min    float64
	Avg    float64
	Median float64
	P90    float64
	Max    float64
}

// Summary is the aggregate of one run.
type Summary struct {
	RunID       string
	Collections int
	Items       int
	Steps       []StepStats
}

// Compute aggregates records into a summary. Pure function.
func Compute(runID string, records []history.Record) Summary {
	s := Summary{RunID: runID, Items: len(records)}
	collections := map[string]struct{}{}
	byStep := map[string]*StepStats{}
	durations := map[string][]float64{}

	for _, r := range records {
		collections[r.CollectionID] = struct{}{}
		st, ok := byStep[r.StepName]
		if !ok {
			st = &StepStats{Step: r.StepName}
			byStep[r.StepName] = st
		}
		switch {
		case r.Outcome.IsSuccess():
			st.Visits++
			durations[r.StepName] = append(durations[r.StepName], r.Outcome.Seconds)
		case r.Outcome.Kind == outcome.KindTimeout:
			st.Timeouts++
		default:
			st.Errors++
		}
	}
	s.Collections = len(collections)

	for name, st := range byStep {
		ds := durations[name]
		sort.Float64s(ds)
		if len(ds) > 0 {
			st.Min = ds[0]
			st.Max = ds[len(ds)-1]
			st.Avg = mean(ds)
			st.Median = percentile(ds, 0.5)
			st.P90 = percentile(ds, 0.9)
		}
		s.Steps = append(s.Steps, *st)
	}
	sort.Slice(s.Steps, func(i, j int) bool { return s.Steps[i].Step < s.Steps[j].Step })
	return s
}

func mean(sorted []float64) float64 {
	var sum float64
	for _, d := range sorted {
		sum += d
	}
	return sum / float64(len(sorted))
}

// percentile uses nearest-rank on an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
