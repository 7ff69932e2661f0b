//go:build linux

package cgroupscope

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// NewScope must never fail the caller: on a kernel without the v2
// unified hierarchy mounted (true of this test sandbox), scoping is
// simply disabled.
func TestNewScopeDisablesWhenUnifiedHierarchyUnavailable(t *testing.T) {
	if unifiedAvailable() {
		t.Skip("this host has cgroup v2 mounted; NewScope would attempt real scope creation")
	}
	scope := NewScope(testLogger())
	require.False(t, scope.Supported)
	require.Equal(t, "", scope.Path())
}

func TestScopeMethodsAreNilSafe(t *testing.T) {
	var scope *Scope
	require.Equal(t, "", scope.Path())
	require.NotPanics(t, func() { scope.Teardown() })

	ts, err := scope.NewTaskScope(1234)
	require.NoError(t, err)
	require.Nil(t, ts)
}

func TestTaskScopeNilSafe(t *testing.T) {
	var ts *TaskScope
	require.NoError(t, ts.Kill())
	require.NoError(t, ts.Delete())
}

// Path() returns the cgroup-relative group path, not a filesystem path
// (Teardown, and the sentinel's liveness poll, must join it with
// cgroupRoot themselves before touching the filesystem).
func TestScopeFsPathPrefixesCgroupRoot(t *testing.T) {
	scope := &Scope{Supported: true, path: "/user.slice/test.scope/drekar-launch-abc.scope", log: testLogger()}
	require.Equal(t, "/user.slice/test.scope/drekar-launch-abc.scope", scope.Path())
	require.Equal(t, cgroupRoot+"/user.slice/test.scope/drekar-launch-abc.scope", scope.fsPath())
}
