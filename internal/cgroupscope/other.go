//go:build !linux

package cgroupscope

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Scope is a no-op stand-in outside Linux: the v2 control-group
// hierarchy simply does not exist on other kernels, so containment
// falls back to session-only isolation (4.A, "other POSIX" / "family
// W" handle their own containment instead).
type Scope struct {
	Supported bool
}

type TaskScope struct{}

func NewScope(logrus.FieldLogger) *Scope { return &Scope{Supported: false} }

func (s *Scope) Path() string { return "" }

func (s *Scope) NewTaskScope(pid int) (*TaskScope, error) { return nil, nil }

func (s *Scope) Teardown() {}

func (t *TaskScope) Kill() error   { return nil }
func (t *TaskScope) Delete() error { return nil }

const EnableSentinelEnv = "DREKAR_LAUNCH_ENABLE_SENTINEL"

func SentinelEnabled() bool { return false }

func SpawnSentinel(scope *Scope, lockPath string, log logrus.FieldLogger) (*os.Process, error) {
	return nil, nil
}

func RunSentinelSubcommand(launcherPID int, scopePath string, log logrus.FieldLogger) error {
	return nil
}
