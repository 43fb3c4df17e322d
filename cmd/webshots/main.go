// webshots drives an unreliable browser through a scripted sequence of
// page visits per archive collection, capturing a screenshot and timing
// per page, and survives the browser crashing or hanging at any point.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/odvcencio/webshots/pkg/config"
	"github.com/odvcencio/webshots/pkg/step"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(exitUsage)
	}
	switch os.Args[1] {
	case "run":
		os.Exit(runCommand(os.Args[2:]))
	case "report":
		os.Exit(reportCommand(os.Args[2:]))
	case "steps":
		os.Exit(stepsCommand(os.Args[2:]))
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(exitUsage)
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `webshots captures per-page screenshots and load timings for archive
collections, one resilient browser session at a time.

Usage:
  webshots run [flags]      visit every collection and capture artifacts
  webshots report [flags]   render timing statistics from recorded runs
  webshots steps [flags]    list the known page visits

Run 'webshots <command> -h' for command flags.
`)
}

// stepsCommand prints the static step table the run command walks.
func stepsCommand(args []string) int {
	fs := newFlagSet("steps")
	configPath := fs.String("config", "", "config file path")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	table := step.Table(cfg.Selectors)
	for _, name := range step.Names(table) {
		spec := table[name]
		suffix := "(stay on page)"
		if spec.URLSuffix != nil && *spec.URLSuffix != step.StayOnPage {
			suffix = fmt.Sprintf("%s/<id>%s", cfg.Target().GUI, *spec.URLSuffix)
		}
		login := ""
		if spec.NeedsLogin {
			login = "  [login]"
		}
		fmt.Printf("%-15s %s%s\n", name, suffix, login)
	}
	return exitOK
}
