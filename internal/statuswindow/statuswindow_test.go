package statuswindow_test

import (
	"testing"

	"github.com/drekar/launch/internal/statuswindow"
	"github.com/stretchr/testify/require"
)

func TestNoopWindowSatisfiesReporter(t *testing.T) {
	var r statuswindow.Reporter = statuswindow.NoopWindow{}
	require.NotPanics(t, func() {
		r.ChildStateChanged("worker", "RUNNING")
		r.GroupClosing()
	})
}
