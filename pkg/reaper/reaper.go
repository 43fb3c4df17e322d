// Package reaper terminates a browser process together with every
// descendant it spawned. The browser is started in its own process
// group so the whole tree can be signalled at once; termination
// escalates from a polite request to a forced kill after a bounded
// wait. All entry points are idempotent: reaping a process that is
// already gone is a no-op.
package reaper

import "time"

// DefaultGrace is the bounded wait between the polite terminate and the
// forced kill.
const DefaultGrace = 3 * time.Second

const pollInterval = 50 * time.Millisecond
