//go:build windows

package reaper

import (
	"os/exec"
	"strconv"
	"time"
)

// Configure is a no-op on Windows; taskkill /T handles the tree.
func Configure(cmd *exec.Cmd) {}

// Reap terminates pid and its descendants via taskkill.
func Reap(pid int, grace time.Duration) error {
	if pid <= 0 {
		return nil
	}
	_ = exec.Command("taskkill", "/pid", strconv.Itoa(pid), "/T").Run()

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !Alive(pid) {
			return nil
		}
		time.Sleep(pollInterval)
	}
	_ = exec.Command("taskkill", "/pid", strconv.Itoa(pid), "/T", "/F").Run()
	return nil
}

// Alive reports whether pid still exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := exec.Command("tasklist", "/FI", "PID eq "+strconv.Itoa(pid)).Run()
	return err == nil
}
