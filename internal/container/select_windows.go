//go:build windows

package container

import (
	"github.com/drekar/launch/internal/cgroupscope"
	"github.com/sirupsen/logrus"
)

// NewBackend returns the Windows job-object backend (4.A "family W").
func NewBackend(_ *cgroupscope.Scope, _ logrus.FieldLogger) Backend {
	return WindowsBackend{}
}
