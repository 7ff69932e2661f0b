//go:build !windows

package launchfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveExecutableAbsolutePathPassesThrough(t *testing.T) {
	got, err := resolveExecutable("/usr/bin/env", map[string]string{})
	require.NoError(t, err)
	require.Equal(t, "/usr/bin/env", got)
}

func TestResolveExecutableSearchesPath(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "mytool")
	require.NoError(t, os.WriteFile(binPath, []byte("#!/bin/sh\n"), 0755))

	got, err := resolveExecutable("mytool", map[string]string{"PATH": dir})
	require.NoError(t, err)
	require.Equal(t, binPath, got)
}

func TestResolveExecutableRejectsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "notabin")
	require.NoError(t, os.WriteFile(binPath, []byte("data"), 0644))

	_, err := resolveExecutable("notabin", map[string]string{"PATH": dir})
	require.Error(t, err)
}

func TestResolveExecutableNotFound(t *testing.T) {
	_, err := resolveExecutable("does-not-exist-anywhere", map[string]string{"PATH": t.TempDir()})
	require.Error(t, err)
}
