//go:build unix

package container

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnPosixCapturesStdoutAndExitStatus(t *testing.T) {
	h, err := spawnPosix(SpawnSpec{
		Program: "/bin/echo",
		Args:    []string{"hello", "world"},
		Env:     os.Environ(),
		Cwd:     "",
	})
	require.NoError(t, err)

	var lines []string
	for h.Stdout().Scan() {
		lines = append(lines, h.Stdout().Text())
	}

	select {
	case <-h.Wait():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit in time")
	}

	require.Equal(t, []string{"hello world"}, lines)
	require.Equal(t, 0, h.ExitStatus())
	require.Greater(t, h.PID(), 0)
}

func TestSpawnPosixNonZeroExit(t *testing.T) {
	h, err := spawnPosix(SpawnSpec{
		Program: "/bin/sh",
		Args:    []string{"-c", "exit 3"},
		Env:     os.Environ(),
	})
	require.NoError(t, err)

	<-h.Wait()
	require.Equal(t, 3, h.ExitStatus())
}

func TestPosixHandleHardKillTerminatesProcess(t *testing.T) {
	h, err := spawnPosix(SpawnSpec{
		Program: "/bin/sleep",
		Args:    []string{"30"},
		Env:     os.Environ(),
	})
	require.NoError(t, err)

	require.NoError(t, h.HardKill())

	select {
	case <-h.Wait():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after HardKill")
	}
}
