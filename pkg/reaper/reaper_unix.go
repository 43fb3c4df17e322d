//go:build !windows

package reaper

import (
	"os/exec"
	"syscall"
	"time"
)

// Configure places the command in its own process group so Reap can
// signal the browser and its descendants together.
func Configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// Reap terminates pid's process group: SIGTERM first, then a bounded
// wait, then SIGKILL for anything still alive. Safe to call for a pid
// that already exited.
func Reap(pid int, grace time.Duration) error {
	if pid <= 0 {
		return nil
	}
	pgid, err := syscall.Getpgid(pid)
	if err != nil || pgid <= 0 {
		// Group leader already gone; fall back to the pid itself.
		_ = syscall.Kill(pid, syscall.SIGKILL)
		return nil
	}
	// Negative PGID targets the full process group (browser + spawned children).
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(-pgid, 0); err != nil {
			return nil
		}
		time.Sleep(pollInterval)
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
	return nil
}

// Alive reports whether pid still exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
