//go:build unix

package transport

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lokkagw/internal/infra/process"
)

func TestSetupProcessHandling_KillsWholeGroup(t *testing.T) {
	// The shell waits on a grandchild the way npx waits on node.
	cmd := exec.Command("/bin/sh", "-c", "sleep 30 & wait")
	cleanup := setupProcessHandling(cmd)
	require.True(t, cmd.SysProcAttr.Setpgid)
	require.NoError(t, cmd.Start())

	cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, process.Wait(ctx, cmd))
}

func TestSetupProcessHandling_CancelKillsGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", "sleep 30 & wait")
	setupProcessHandling(cmd)
	require.NoError(t, cmd.Start())

	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer waitCancel()
	require.NoError(t, process.Wait(waitCtx, cmd))
}
