//go:build linux

// Package cgroupscope implements spec component 4.B: a v2 control-group
// scope per launch, a task sub-scope per child, and the sentinel helper
// that guarantees the scope is destroyed even if the launcher crashes.
//
// Grounded on the teacher's cgroup.go (self-cgroup discovery via
// /proc/self/cgroup, the "no internal processes" dance) but the actual
// scope lifecycle is delegated to containerd/cgroups/v3/cgroup2's
// Manager instead of the teacher's raw os.WriteFile calls.
package cgroupscope

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/containerd/cgroups/v3/cgroup2"
	systemddbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const cgroupRoot = "/sys/fs/cgroup"

// Scope is the Group's launch-wide control-group scope. A nil *Scope
// (or one returned with Supported==false) means cgroups v2 is
// unavailable or delegation failed — creation is best-effort, never
// fatal (spec 4.B.1).
type Scope struct {
	Supported bool
	path      string
	manager   *cgroup2.Manager
	log       logrus.FieldLogger
}

// unifiedAvailable reports whether the v2 unified hierarchy is mounted.
func unifiedAvailable() bool {
	_, err := os.Stat(filepath.Join(cgroupRoot, "cgroup.controllers"))
	return err == nil
}

func selfCgroupPath() (string, error) {
	data, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	parts := strings.SplitN(line, "::", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("unexpected cgroup format: %s", line)
	}
	return parts[1], nil
}

// systemdManagesCgroup reports whether a systemd instance is already
// managing the unified cgroup hierarchy. When it is, systemd expects
// exclusive control of the cgroup tree it delegates, so NewScope logs
// this rather than fighting it; the scope is still created underneath
// the delegated unit, same as any other control-group child.
func systemdManagesCgroup(log logrus.FieldLogger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := systemddbus.NewSystemConnectionContext(ctx)
	if err != nil {
		log.WithError(err).Debug("no systemd manager reachable over dbus")
		return false
	}
	defer conn.Close()

	version, err := conn.GetManagerProperty("Version")
	if err != nil {
		log.WithError(err).Debug("systemd manager did not report a version")
		return false
	}
	log.WithField("systemdVersion", version).Debug("detected systemd managing this host's cgroup tree")
	return true
}

// NewScope creates the launch scope directory
// <parent>/drekar-launch-<uuid>.scope/. Any failure disables scoping
// entirely rather than failing the launch (4.B.1).
func NewScope(log logrus.FieldLogger) *Scope {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if !unifiedAvailable() {
		log.Debug("cgroup v2 unified hierarchy not mounted, scoping disabled")
		return &Scope{Supported: false, log: log}
	}

	parent, err := selfCgroupPath()
	if err != nil {
		log.WithError(err).Warn("could not read /proc/self/cgroup, scoping disabled")
		return &Scope{Supported: false, log: log}
	}

	_ = systemdManagesCgroup(log)

	group := filepath.Join(parent, fmt.Sprintf("drekar-launch-%s.scope", uuid.NewString()))
	mgr, err := cgroup2.NewManager(cgroupRoot, group, &cgroup2.Resources{})
	if err != nil {
		log.WithError(err).Warn("failed to create launch cgroup scope, continuing without it")
		return &Scope{Supported: false, log: log}
	}

	log.WithField("path", group).Info("created launch cgroup scope")
	return &Scope{Supported: true, path: group, manager: mgr, log: log}
}

// Path returns the scope's cgroup-relative group path (the same string
// passed to cgroup2.NewManager as "group", e.g.
// "/user.slice/.../drekar-launch-<uuid>.scope"), or "" if unsupported.
// Join with cgroupRoot (fsPath) to get an actual filesystem path.
func (s *Scope) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// fsPath returns the scope's real filesystem path under cgroupRoot.
func (s *Scope) fsPath() string {
	return filepath.Join(cgroupRoot, s.path)
}

// TaskScope is a per-child sub-scope under the launch scope.
type TaskScope struct {
	path    string
	manager *cgroup2.Manager
}

// NewTaskScope creates <scope>/task-<pid>.scope/ and atomically moves
// pid (and everything it later forks) into it. A no-op (returns nil,
// nil) when the parent scope is unsupported — the caller falls back to
// session-only isolation.
func (s *Scope) NewTaskScope(pid int) (*TaskScope, error) {
	if s == nil || !s.Supported {
		return nil, nil
	}

	group := filepath.Join(s.path, fmt.Sprintf("task-%d.scope", pid))
	mgr, err := cgroup2.NewManager(cgroupRoot, group, &cgroup2.Resources{})
	if err != nil {
		return nil, fmt.Errorf("create task scope for pid %d: %w", pid, err)
	}
	if err := mgr.AddProc(uint64(pid)); err != nil {
		_ = mgr.Delete()
		return nil, fmt.Errorf("move pid %d into task scope: %w", pid, err)
	}
	return &TaskScope{path: filepath.Join(cgroupRoot, group), manager: mgr}, nil
}

// Kill writes "1" to cgroup.kill, terminating every process the task
// scope contains.
func (t *TaskScope) Kill() error {
	if t == nil {
		return nil
	}
	return t.manager.Kill()
}

// Delete removes the (now-empty) task scope directory.
func (t *TaskScope) Delete() error {
	if t == nil {
		return nil
	}
	return t.manager.Delete()
}

// Teardown recursively kills and removes every task sub-scope, then the
// launch scope itself, depth-first (4.B.3). Safe to call on an
// unsupported scope.
func (s *Scope) Teardown() {
	if s == nil || !s.Supported {
		return
	}

	fsPath := s.fsPath()
	entries, err := os.ReadDir(fsPath)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			child := filepath.Join(fsPath, e.Name())
			killFile := filepath.Join(child, "cgroup.kill")
			if err := os.WriteFile(killFile, []byte("1"), 0644); err != nil {
				s.log.WithError(err).WithField("scope", child).Debug("kill write failed")
			}
			time.Sleep(20 * time.Millisecond)
			if err := os.RemoveAll(child); err != nil {
				s.log.WithError(err).WithField("scope", child).Debug("remove failed")
			}
		}
	}

	if s.manager != nil {
		if err := s.manager.Delete(); err != nil {
			s.log.WithError(err).WithField("scope", fsPath).Debug("manager delete failed")
		}
	}
	time.Sleep(20 * time.Millisecond)
	if err := os.RemoveAll(fsPath); err != nil {
		s.log.WithError(err).WithField("scope", fsPath).Debug("remove scope failed")
	}
}
