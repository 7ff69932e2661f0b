//go:build unix && !linux

package container

import (
	"github.com/drekar/launch/internal/cgroupscope"
	"github.com/sirupsen/logrus"
)

// NewBackend returns the "other POSIX" backend: no recursive container,
// isolation by session only (4.A).
func NewBackend(_ *cgroupscope.Scope, _ logrus.FieldLogger) Backend {
	return PosixBackend{}
}
