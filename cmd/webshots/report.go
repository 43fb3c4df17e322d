package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/odvcencio/webshots/pkg/config"
	"github.com/odvcencio/webshots/pkg/history"
	"github.com/odvcencio/webshots/pkg/report"
)

// reportCommand renders statistics for a past run from the history
// database, without touching a browser.
func reportCommand(args []string) int {
	fs := newFlagSet("report")
	configPath := fs.String("config", "", "config file path")
	runID := fs.String("run", "", "run id to report on, latest when empty")
	collection := fs.String("collection", "", "show one collection's outcomes across runs instead")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	defer hist.Close()
	ctx := context.Background()

	if *collection != "" {
		records, err := hist.CollectionHistory(ctx, *collection)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
		if len(records) == 0 {
			fmt.Printf("no recorded outcomes for %s\n", *collection)
			return exitOK
		}
		for _, r := range records {
			fmt.Printf("%s  %-15s %-10s %s\n",
				r.RecordedAt.Format("2006-01-02 15:04:05"), r.StepName, r.RunID, r.Outcome)
		}
		return exitOK
	}

	id := *runID
	if id == "" {
		id, err = hist.LatestRunID(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			fmt.Println("history is empty")
			return exitOK
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
	}
	records, err := hist.RunOutcomes(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	fmt.Print(report.Render(report.Compute(id, records)))
	return exitOK
}
