package launchfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.env")
	require.NoError(t, os.WriteFile(path, []byte("A=1\n# comment line\n  \nB=two words # trailing\n"), 0644))

	env, err := parseEnvFile(path)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"A": "1", "B": "two words"}, env)
}

func TestParseEnvFileRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.env")
	require.NoError(t, os.WriteFile(path, []byte("NOT_KEY_VALUE\n"), 0644))

	_, err := parseEnvFile(path)
	require.Error(t, err)
}

func TestParseEnvFileMissingFile(t *testing.T) {
	_, err := parseEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
