//go:build linux

package cgroupscope

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

// EnableSentinelEnv is the environment variable the sentinel itself
// always sets to "0" before spawning, to prevent a sentinel from ever
// spawning another sentinel (4.B.4).
const EnableSentinelEnv = "DREKAR_LAUNCH_ENABLE_SENTINEL"

// SentinelEnabled reports whether a new sentinel should be spawned,
// per the values documented in §6: "1"/"true" enable (the default,
// including an unset variable), anything else disables it.
func SentinelEnabled() bool {
	v, ok := os.LookupEnv(EnableSentinelEnv)
	if !ok {
		return true
	}
	return v == "1" || v == "true"
}

const (
	pollInterval = 15 * time.Second
	deathGrace   = 10 * time.Second
)

// SpawnSentinel fork-execs a detached copy of the running binary as
// "<self> --sentinel <launcherPID> <scopePath>", in its own session so
// the launcher's death never kills it. lockPath is an advisory flock
// file the sentinel also probes as a second liveness signal.
func SpawnSentinel(scope *Scope, lockPath string, log logrus.FieldLogger) (*os.Process, error) {
	if scope == nil || !scope.Supported {
		return nil, nil
	}
	if !SentinelEnabled() {
		log.Debug("sentinel disabled via " + EnableSentinelEnv)
		return nil, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve own executable for sentinel: %w", err)
	}

	cmd := exec.Command(self, "--sentinel", fmt.Sprintf("%d", os.Getpid()), scope.Path())
	cmd.Env = append(os.Environ(), EnableSentinelEnv+"=0")
	if lockPath != "" {
		cmd.Env = append(cmd.Env, "DREKAR_LAUNCH_LOCKFILE="+lockPath)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sentinel: %w", err)
	}
	// Detached: the launcher never waits on it, except to reap it so it
	// never becomes a zombie of this process if it exits early (e.g.
	// scope already gone by the time it polls).
	go func() { _ = cmd.Wait() }()
	return cmd.Process, nil
}

// RunSentinelSubcommand implements the --sentinel entry path (4.B.4,
// 4.F.1): poll until the launcher is gone, then tear the scope down.
// Blocks until teardown or until the scope disappears on its own.
func RunSentinelSubcommand(launcherPID int, scopePath string, log logrus.FieldLogger) error {
	var lock *flock.Flock
	if p := os.Getenv("DREKAR_LAUNCH_LOCKFILE"); p != "" {
		lock = flock.New(p)
	}

	deadSince := time.Time{}
	for {
		time.Sleep(pollInterval)

		if _, err := os.Stat(filepath.Join(cgroupRoot, scopePath)); os.IsNotExist(err) {
			log.Debug("sentinel: scope gone, exiting")
			return nil
		}

		alive := launcherAlive(launcherPID, lock)
		if alive {
			deadSince = time.Time{}
			continue
		}

		if deadSince.IsZero() {
			deadSince = time.Now()
			log.Warn("sentinel: launcher appears dead, entering grace period")
			continue
		}

		if time.Since(deadSince) < deathGrace {
			continue
		}

		log.Warn("sentinel: launcher confirmed dead, tearing down scope")
		s := &Scope{Supported: true, path: scopePath, log: log}
		s.Teardown()
		return nil
	}
}

func launcherAlive(pid int, lock *flock.Flock) bool {
	if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); os.IsNotExist(err) {
		return false
	}

	// Second signal: if the lock file is takeable, the launcher that
	// held it is gone even if its PID was recycled by an unrelated
	// process in the meantime.
	if lock != nil {
		locked, err := lock.TryLock()
		if err == nil && locked {
			_ = lock.Unlock()
			return false
		}
	}
	return true
}
