package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/webshots/pkg/artifact"
	"github.com/odvcencio/webshots/pkg/catalog"
	"github.com/odvcencio/webshots/pkg/config"
	"github.com/odvcencio/webshots/pkg/driver"
	"github.com/odvcencio/webshots/pkg/driver/cdp"
	"github.com/odvcencio/webshots/pkg/history"
	"github.com/odvcencio/webshots/pkg/logging"
	"github.com/odvcencio/webshots/pkg/metrics"
	"github.com/odvcencio/webshots/pkg/outcome"
	"github.com/odvcencio/webshots/pkg/report"
	"github.com/odvcencio/webshots/pkg/session"
	"github.com/odvcencio/webshots/pkg/step"
	"github.com/odvcencio/webshots/pkg/supervisor"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func runCommand(args []string) int {
	fs := newFlagSet("run")
	configPath := fs.String("config", "", "config file path")
	instance := fs.String("instance", "", "target instance name")
	ids := fs.String("ids", "", "comma-separated collection ids, skips catalog enumeration")
	headless := fs.Bool("headless", true, "run the browser headless")
	login := fs.Bool("login", false, "authenticate before visiting login-only steps")
	artifactsDir := fs.String("artifacts", "", "artifact output directory")
	logLevel := fs.String("log-level", "", "log verbosity: debug, info, warn, error")
	metricsAddr := fs.String("metrics", "", "serve /metrics and /healthz on this address")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	// Flags the caller actually set override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "instance":
			cfg.Instance = *instance
		case "headless":
			cfg.Headless = *headless
		case "login":
			cfg.Login = *login
		case "artifacts":
			cfg.ArtifactsDir = *artifactsDir
		case "log-level":
			cfg.LogLevel = *logLevel
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	runID := ulid.Make().String()
	log, err := logging.NewLogger(cfg.LogDir, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	defer log.Close()
	log.SetMinLevel(logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, stop, cfg, runID, log, splitIDs(*ids))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// run executes one full pass: enumerate collections, visit every step of
// each through the supervised session, persist artifacts and history,
// then print the timing report. Per-item timeouts and errors are
// recorded and do not fail the run; only a Fatality, an exhausted retry
// budget, or an interrupt does.
func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, runID string, log *logging.Logger, explicitIDs []string) error {
	target := cfg.Target()
	log.Infof(logging.CategorySession, "run_start", "run %s against %s", runID, target.GUI)

	store := artifact.NewStore(cfg.ArtifactsDir)
	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer hist.Close()

	met := metrics.NewSet()
	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: met.Handler()}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	var lister catalog.Lister = catalog.Static(explicitIDs)
	if len(explicitIDs) == 0 {
		lister = catalog.NewClient(catalog.ClientOptions{
			BaseURL:           target.API,
			PageSize:          cfg.Catalog.PageSize,
			RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		})
	}
	collections, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	log.Infof(logging.CategoryCatalog, "listed", "%d collections to visit", len(collections))

	sessCfg := session.Config{
		BaseURL:   target.GUI,
		Login:     cfg.Login,
		Timeouts:  cfg.Timeouts,
		Selectors: cfg.Selectors,
		LoginUI:   cfg.LoginUI,
	}
	factory := func(ctx context.Context) (supervisor.Executor, error) {
		s, err := session.Open(ctx, sessCfg, func(ctx context.Context) (driver.Driver, error) {
			return cdp.Launch(ctx, cfg.Browser)
		}, store, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	sup := supervisor.New(factory, cfg.Supervisor, log, met)
	defer sup.Close()

	order := step.Order(cfg.Login)
	allResults := map[string]map[string]outcome.Outcome{}
	var runErr error
visit:
	for _, id := range collections {
		results := map[string]outcome.Outcome{}
		for _, name := range order {
			item := step.Item{CollectionID: id, StepName: name}
			out, err := sup.Execute(ctx, item)
			if err != nil {
				runErr = err
				break visit
			}
			results[name] = out
			met.RecordItem(string(out.Kind), out.Seconds, out.IsSuccess())
			if err := hist.RecordOutcome(ctx, runID, item, out); err != nil {
				log.Warnf(logging.CategoryArtifact, "history", "recording %s/%s: %v", id, name, err)
			}
		}
		allResults[id] = results
		if err := store.WriteInfo(id, results); err != nil {
			log.Errorf(logging.CategoryArtifact, "info", "writing info.yaml for %s: %v", id, err)
		}
	}

	if err := store.WriteSummary(allResults); err != nil {
		log.Errorf(logging.CategoryArtifact, "summary", "writing summary.yaml: %v", err)
	}
	if err := sup.Close(); err != nil {
		log.Warnf(logging.CategorySupervisor, "close", "teardown: %v", err)
	}
	stop()
	if err := g.Wait(); err != nil {
		log.Warnf(logging.CategorySupervisor, "metrics", "metrics server: %v", err)
	}

	// The report covers whatever completed, even on an aborted run.
	records, err := hist.RunOutcomes(context.Background(), runID)
	if err == nil {
		fmt.Println(report.Render(report.Compute(runID, records)))
	}

	if runErr != nil {
		log.Errorf(logging.CategorySupervisor, "run_aborted", "%v", runErr)
		return runErr
	}
	log.Infof(logging.CategorySession, "run_done", "run %s complete", runID)
	return nil
}
