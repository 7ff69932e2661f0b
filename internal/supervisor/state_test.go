package supervisor_test

import (
	"testing"

	"github.com/drekar/launch/internal/supervisor"
	"github.com/stretchr/testify/require"
)

func TestChildStateStrings(t *testing.T) {
	cases := map[supervisor.ChildState]string{
		supervisor.StateInit:         "INIT",
		supervisor.StateDelay:        "DELAY",
		supervisor.StateStartPending: "START_PENDING",
		supervisor.StateRunning:      "RUNNING",
		supervisor.StateStopped:      "STOPPED",
		supervisor.StateTerminal:     "TERMINAL",
	}
	for state, want := range cases {
		require.Equal(t, want, state.String())
	}
	require.Equal(t, "UNKNOWN", supervisor.ChildState(99).String())
}
