//go:build unix

package container

import (
	"bufio"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// posixHandle is the generic POSIX handle shared by the "other POSIX"
// backend (no container at all, session-only isolation) and the Linux
// backend (which wraps it with a cgroup task scope). Grounded on the
// teacher's process.go: Setpgid/new-session at spawn, negative-pid
// kill for the whole group.
type posixHandle struct {
	cmd      *exec.Cmd
	pid      int
	stdout   *bufio.Scanner
	stderr   *bufio.Scanner
	waitCh   chan struct{}
	mu       sync.Mutex
	exitCode int
}

// spawnPosix starts program in a new session (Setsid), which per the
// Open Questions in spec.md §9 is required: the soft-stop path signals
// the child's own process group, which only targets the right process
// if the child was started in a new session. A new session's leader
// has pgid == pid == sid, set atomically by the kernel before exec —
// satisfying the atomicity requirement on POSIX without any
// suspend/resume dance.
func spawnPosix(spec SpawnSpec) (*posixHandle, error) {
	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Cwd
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &posixHandle{
		cmd:      cmd,
		pid:      cmd.Process.Pid,
		stdout:   newLineScanner(stdoutPipe),
		stderr:   newLineScanner(stderrPipe),
		waitCh:   make(chan struct{}),
		exitCode: -1,
	}

	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.exitCode = normalizeExit(err)
		h.mu.Unlock()
		close(h.waitCh)
	}()

	return h, nil
}

func normalizeExit(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
		return exitErr.ExitCode()
	}
	return -1
}

func (h *posixHandle) PID() int { return h.pid }

func (h *posixHandle) Stdout() LineScanner { return h.stdout }
func (h *posixHandle) Stderr() LineScanner { return h.stderr }

func (h *posixHandle) Wait() <-chan struct{} { return h.waitCh }

func (h *posixHandle) ExitStatus() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// SoftStop sends SIGINT to the child's process group, obtained from its
// session leader — the POSIX soft-stop semantics of 4.A.
func (h *posixHandle) SoftStop(attempt int) error {
	return unix.Kill(-h.pid, unix.SIGINT)
}

func (h *posixHandle) HardKill() error {
	return unix.Kill(-h.pid, unix.SIGKILL)
}

// Dispose is the "other POSIX" fallback: no container to destroy, so
// dispose falls back to hard_kill (4.A).
func (h *posixHandle) Dispose() error {
	return h.HardKill()
}

// PosixBackend is the "other POSIX" family backend (BSD, non-Linux
// unix): isolation by session only, no recursive container.
type PosixBackend struct{}

func (PosixBackend) Spawn(spec SpawnSpec) (Handle, error) {
	h, err := spawnPosix(spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}
