// Package container implements the OS process-group isolation layer
// (spec component 4.A): spawning a child inside an OS-level container
// that can be destroyed recursively, and the OS-appropriate soft-stop
// signal.
package container

import (
	"bufio"
	"io"
)

// LineScanner is the minimal surface of *bufio.Scanner that stdio
// draining needs, satisfied directly by *bufio.Scanner.
type LineScanner interface {
	Scan() bool
	Text() string
	Err() error
}

// Handle is what Backend.Spawn returns: a running child plus the
// operations a ChildSupervisor needs for its whole life.
type Handle interface {
	PID() int

	// Stdout and Stderr are line-readable and safe to scan concurrently
	// with Wait(); the backend guarantees they are non-blocking to the
	// surrounding scheduler (separate goroutines drain them).
	Stdout() LineScanner
	Stderr() LineScanner

	// Wait returns a channel that is closed exactly once, when the
	// child has exited and ExitStatus is safe to read.
	Wait() <-chan struct{}

	// ExitStatus is the platform-normalized, signed exit status; -1
	// before the first exit has been observed.
	ExitStatus() int

	// SoftStop requests an OS-appropriate polite termination. attempt
	// starts at 0 and increases by one on every call from the same
	// shutdown sequence; family W escalates its mechanism once attempt
	// exceeds 3.
	SoftStop(attempt int) error

	// HardKill unconditionally terminates every process in the
	// container.
	HardKill() error

	// Dispose destroys the container. Idempotent; safe to call after
	// HardKill or after the child has already exited on its own.
	Dispose() error
}

// Backend is the contract every platform implementation satisfies.
// Spawn must be atomic: there is never a moment where the child process
// is running but not yet a member of its container. LinuxBackend only
// narrows that moment (see its Spawn); it does not remove it.
type Backend interface {
	Spawn(spec SpawnSpec) (Handle, error)
}

// SpawnSpec is the parameter object for Backend.Spawn, built from a
// supervisor.ChildSpec by the caller.
type SpawnSpec struct {
	Program string
	Args    []string
	Env     []string
	Cwd     string
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return sc
}
