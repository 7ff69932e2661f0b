//go:build linux

package container

import (
	"time"

	"github.com/drekar/launch/internal/cgroupscope"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// LinuxBackend contains every spawned child in a per-child cgroup v2
// task scope under the Group's launch scope (4.B.2). Falls back to
// session-only isolation (like PosixBackend) when the scope is
// unsupported on this kernel.
type LinuxBackend struct {
	Scope *cgroupscope.Scope
	Log   logrus.FieldLogger
}

type linuxHandle struct {
	*posixHandle
	taskScope *cgroupscope.TaskScope
}

// Spawn approximates atomic containment, which Linux does not offer
// natively here: the child is stopped with SIGSTOP right after Start,
// moved into its task scope, then resumed. The child is already running
// between Start and SIGSTOP, so anything it forks in that window is not
// placed in the task scope; the window is narrowed, not closed.
func (b LinuxBackend) Spawn(spec SpawnSpec) (Handle, error) {
	h, err := spawnPosix(spec)
	if err != nil {
		return nil, err
	}

	if b.Scope == nil || !b.Scope.Supported {
		return h, nil
	}

	if err := unix.Kill(h.pid, unix.SIGSTOP); err != nil {
		b.Log.WithError(err).Warn("could not suspend child for containment, continuing uncontained")
		return h, nil
	}

	ts, err := b.Scope.NewTaskScope(h.pid)
	_ = unix.Kill(h.pid, unix.SIGCONT)
	if err != nil {
		b.Log.WithError(err).Warn("task scope creation failed, continuing without containment")
		return h, nil
	}

	return &linuxHandle{posixHandle: h, taskScope: ts}, nil
}

// Dispose writes to the scope's kill file and removes the directory
// tree depth-first (4.A, "family L"). If the child was never contained
// (scope unsupported), falls back to hard_kill.
func (h *linuxHandle) Dispose() error {
	if h.taskScope == nil {
		return h.HardKill()
	}
	if err := h.taskScope.Kill(); err != nil {
		return err
	}
	time.Sleep(20 * time.Millisecond)
	return h.taskScope.Delete()
}
