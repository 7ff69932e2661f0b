package supervisor_test

import (
	"testing"
	"time"

	"github.com/drekar/launch/internal/supervisor"
	"github.com/stretchr/testify/require"
)

func TestGroupStartAllIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	backend := &fakeBackend{runFor: time.Hour, exit: 0}
	g := supervisor.NewGroup("test-launch", dir, false, backend, nil, noopLogger())

	specs := []supervisor.ChildSpec{
		{Name: "a", Program: "/bin/sleep"},
		{Name: "b", Program: "/bin/sleep"},
	}
	require.NoError(t, g.StartAll(specs))
	require.NoError(t, g.StartAll(specs))

	require.Eventually(t, func() bool {
		return backend.spawnCount() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestGroupStopAllAndWaitAllStopped(t *testing.T) {
	dir := t.TempDir()
	backend := &fakeBackend{runFor: time.Hour, exit: 0}
	g := supervisor.NewGroup("test-launch", dir, false, backend, nil, noopLogger())

	specs := []supervisor.ChildSpec{{Name: "a", Program: "/bin/sleep"}}
	require.NoError(t, g.StartAll(specs))

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.handles) == 1
	}, time.Second, 5*time.Millisecond)

	g.StopAll()

	backend.mu.Lock()
	h := backend.handles[0]
	backend.mu.Unlock()

	// Stopped but not reaped yet: soft-stop doesn't actually kill the
	// fake handle, so WaitAllStopped must escalate to HardKill once the
	// shutdown budget elapses. Force a quick exit instead to exercise
	// the non-escalated path.
	require.GreaterOrEqual(t, h.softStops.Load(), int32(1))

	close(h.waitCh)

	g.WaitAllStopped()
	g.Close()
	require.Equal(t, 0, g.ExitStatus())
}

func TestGroupRunningTracksRegistrationUntilTerminal(t *testing.T) {
	dir := t.TempDir()
	backend := &fakeBackend{runFor: time.Hour, exit: 0}
	g := supervisor.NewGroup("test-launch", dir, false, backend, nil, noopLogger())

	specs := []supervisor.ChildSpec{{Name: "a", Program: "/bin/sleep"}}
	require.NoError(t, g.StartAll(specs))

	require.Eventually(t, func() bool {
		return len(g.Running()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"a"}, g.Running())

	backend.mu.Lock()
	h := backend.handles[0]
	backend.mu.Unlock()
	close(h.waitCh)

	require.Eventually(t, func() bool {
		return len(g.Running()) == 0
	}, time.Second, 5*time.Millisecond)

	g.Close()
}

func TestGroupExitStatusTracksLastNonZero(t *testing.T) {
	dir := t.TempDir()
	backend := &fakeBackend{runFor: 5 * time.Millisecond, exit: 7}
	g := supervisor.NewGroup("test-launch", dir, false, backend, nil, noopLogger())

	specs := []supervisor.ChildSpec{{Name: "a", Program: "/bin/false"}}
	require.NoError(t, g.StartAll(specs))

	require.Eventually(t, func() bool {
		return g.ExitStatus() == 7
	}, time.Second, 5*time.Millisecond)

	g.StopAll()
	g.WaitAllStopped()
	g.Close()
}
