// Package step defines the per-page visit protocol: which pages exist,
// what each one waits for, and the state machine that executes a single
// visit against an open browser and classifies its failures.
package step

import (
	"sort"
	"time"

	"github.com/odvcencio/webshots/pkg/driver"
)

// Item identifies one unit of work: visit one page of one collection.
type Item struct {
	CollectionID string `json:"collection_id" yaml:"collection_id"`
	StepName     string `json:"step_name" yaml:"step_name"`
}

// StayOnPage is the URLSuffix sentinel for steps that reuse the page
// already shown instead of navigating; the step then waits for that
// page's busy signal to clear before proceeding.
const StayOnPage = "@current"

// Action is an optional UI interaction run after navigation, e.g. a
// click that opens an edit panel. Its target may legitimately be absent
// for some collections.
type Action struct {
	Target driver.Selector
}

// Spec describes one page visit. Signals are optional: the target UI's
// loading behavior is non-uniform, so a page model tolerates the
// absence of any of them.
type Spec struct {
	URLSuffix   *string
	ReadySignal *driver.Selector
	BusySignal  *driver.Selector
	Action      *Action

	// NeedsLogin marks steps that only make sense on an authenticated
	// session.
	NeedsLogin bool
}

// Timeouts bounds every wait in the state machine. The values are
// configuration, not contracts; they track one specific target UI.
type Timeouts struct {
	// Action bounds the optional UI action; short, because the target
	// may legitimately never appear.
	Action time.Duration `yaml:"action"`
	// Grace bounds how long a busy signal gets to appear at all.
	Grace time.Duration `yaml:"grace"`
	// Ready bounds the ready-signal wait.
	Ready time.Duration `yaml:"ready"`
	// Busy bounds the busy-signal disappearance wait.
	Busy time.Duration `yaml:"busy"`
	// Settle is the fixed pause before capture, letting animations
	// finish.
	Settle time.Duration `yaml:"settle"`
}

// DefaultTimeouts returns bounds tuned against the live target UI.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Action: 5 * time.Second,
		Grace:  3 * time.Second,
		Ready:  30 * time.Second,
		Busy:   30 * time.Second,
		Settle: time.Second,
	}
}

// Selectors identifies the target UI's wait signals and controls. They
// are markup artifacts of one specific frontend and expected to drift,
// hence configurable.
type Selectors struct {
	Busy       string `yaml:"busy"`
	EditButton string `yaml:"edit_button"`
	EditPanel  string `yaml:"edit_panel"`
}

// DefaultSelectors matches the current archive frontend markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Busy:       ".v-progress-circular",
		EditButton: `//button[.//span[contains(text(), "Metadata")]]`,
		EditPanel:  ".v-dialog--active",
	}
}

// Step names, in visit order.
const (
	Landing      = "landing"
	EditMetadata = "edit-metadata"
	ViewData     = "view-data"
)

// Table returns the static step table: exactly one Spec per step name,
// fixed at startup.
func Table(sel Selectors) map[string]Spec {
	busy := driver.CSS(sel.Busy)
	editPanel := driver.CSS(sel.EditPanel)
	landing := ""
	stay := StayOnPage
	files := "/draft/files"

	return map[string]Spec{
		Landing: {
			URLSuffix:  &landing,
			BusySignal: &busy,
		},
		EditMetadata: {
			URLSuffix:   &stay,
			BusySignal:  &busy,
			ReadySignal: &editPanel,
			Action:      &Action{Target: driver.XPath(sel.EditButton)},
			NeedsLogin:  true,
		},
		ViewData: {
			URLSuffix:  &files,
			BusySignal: &busy,
		},
	}
}

// Order returns the step names in visit order, restricted to what the
// session can actually reach: edit steps need an authenticated session.
func Order(loggedIn bool) []string {
	if loggedIn {
		return []string{Landing, EditMetadata, ViewData}
	}
	return []string{Landing, ViewData}
}

// Names returns every known step name, sorted.
func Names(table map[string]Spec) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
