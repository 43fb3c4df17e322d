//go:build !windows

package reaper

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startSleeper(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sh", "-c", "sleep 60 & sleep 60")
	Configure(cmd)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = Reap(cmd.Process.Pid, time.Second)
		_ = cmd.Wait()
	})
	return cmd
}

func TestReapKillsProcessGroup(t *testing.T) {
	cmd := startSleeper(t)
	pid := cmd.Process.Pid
	require.True(t, Alive(pid))

	require.NoError(t, Reap(pid, 2*time.Second))
	_ = cmd.Wait()

	// The shell and its background child must both be gone.
	require.Eventually(t, func() bool { return !Alive(pid) },
		2*time.Second, 20*time.Millisecond)
}

func TestReapIdempotent(t *testing.T) {
	cmd := startSleeper(t)
	pid := cmd.Process.Pid

	require.NoError(t, Reap(pid, time.Second))
	_ = cmd.Wait()
	// Second reap of a dead tree is a no-op.
	require.NoError(t, Reap(pid, time.Second))
}

func TestReapIgnoresInvalidPID(t *testing.T) {
	require.NoError(t, Reap(0, time.Second))
	require.NoError(t, Reap(-1, time.Second))
	require.False(t, Alive(0))
}
