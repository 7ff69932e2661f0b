//go:build linux

package container

import (
	"github.com/drekar/launch/internal/cgroupscope"
	"github.com/sirupsen/logrus"
)

// NewBackend returns the Linux backend, which contains children in a
// cgroup v2 task scope when the kernel supports it and falls back to
// session-only isolation otherwise.
func NewBackend(scope *cgroupscope.Scope, log logrus.FieldLogger) Backend {
	return LinuxBackend{Scope: scope, Log: log}
}
