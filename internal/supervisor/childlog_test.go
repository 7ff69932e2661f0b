package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenChildLogCreatesBothFiles(t *testing.T) {
	dir := t.TempDir()
	cl, err := openChildLog(dir, "worker", false)
	require.NoError(t, err)
	defer cl.Close()

	writeLine(cl.stdout, "hello")
	writeLine(cl.stderr, "oops")

	stdoutBytes, err := os.ReadFile(filepath.Join(dir, "worker.log"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(stdoutBytes))

	stderrBytes, err := os.ReadFile(filepath.Join(dir, "worker.stderr.log"))
	require.NoError(t, err)
	require.Equal(t, "oops\n", string(stderrBytes))
}

func TestOpenChildLogTruncatesOnReopen(t *testing.T) {
	dir := t.TempDir()
	cl, err := openChildLog(dir, "worker", false)
	require.NoError(t, err)
	writeLine(cl.stdout, "first run, long line of output")
	cl.Close()

	cl2, err := openChildLog(dir, "worker", false)
	require.NoError(t, err)
	defer cl2.Close()
	writeLine(cl2.stdout, "second")

	data, err := os.ReadFile(filepath.Join(dir, "worker.log"))
	require.NoError(t, err)
	require.Equal(t, "second\n", string(data))
}

func TestOpenChildLogScreenEchoTees(t *testing.T) {
	dir := t.TempDir()
	cl, err := openChildLog(dir, "worker", true)
	require.NoError(t, err)
	defer cl.Close()

	_, isTee := cl.stdout.(*teeLineWriter)
	require.True(t, isTee)
}
