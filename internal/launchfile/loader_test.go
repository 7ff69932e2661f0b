package launchfile_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drekar/launch/internal/launchfile"
	"github.com/stretchr/testify/require"
)

func testEnv() []string {
	return []string{"PATH=/usr/bin:/bin", "HOME=/home/tester"}
}

func TestLoadWithEnvBuildsSpecs(t *testing.T) {
	doc := map[string]interface{}{
		"name": "demo",
		"tasks": []interface{}{
			map[string]interface{}{
				"name":              "worker",
				"program":           "true",
				"args":              "--flag value",
				"restart":           true,
				"restart-backoff":   2,
				"start-delay":       1,
				"quit-on-terminate": false,
				"tags":              []interface{}{"core"},
			},
		},
	}

	got, err := launchfile.LoadWithEnv(doc, "/cwd", testEnv())
	require.NoError(t, err)
	require.Equal(t, "demo", got.Name)
	require.Len(t, got.Specs, 1)

	spec := got.Specs[0]
	require.Equal(t, "worker", spec.Name)
	require.Equal(t, []string{"--flag", "value"}, spec.Args)
	require.True(t, spec.Restart)
	require.Equal(t, 2*time.Second, spec.RestartBackoff)
	require.Equal(t, 1*time.Second, spec.StartDelay)
	require.Equal(t, []string{"core"}, spec.Tags)
	require.Equal(t, "/cwd", spec.Cwd)
	require.Equal(t, "/home/tester", spec.Environment["HOME"])
}

func TestLoadWithEnvRejectsDuplicateNames(t *testing.T) {
	doc := map[string]interface{}{
		"tasks": []interface{}{
			map[string]interface{}{"name": "a", "program": "true"},
			map[string]interface{}{"name": "a", "program": "true"},
		},
	}
	_, err := launchfile.LoadWithEnv(doc, "/cwd", testEnv())
	require.Error(t, err)
}

func TestLoadWithEnvRequiresNameAndProgram(t *testing.T) {
	doc := map[string]interface{}{
		"tasks": []interface{}{
			map[string]interface{}{"program": "true"},
		},
	}
	_, err := launchfile.LoadWithEnv(doc, "/cwd", testEnv())
	require.Error(t, err)

	doc = map[string]interface{}{
		"tasks": []interface{}{
			map[string]interface{}{"name": "a"},
		},
	}
	_, err = launchfile.LoadWithEnv(doc, "/cwd", testEnv())
	require.Error(t, err)
}

func TestLoadWithEnvRequiresTasksField(t *testing.T) {
	_, err := launchfile.LoadWithEnv(map[string]interface{}{}, "/cwd", testEnv())
	require.Error(t, err)
}

func TestLoadWithEnvEnvFileOverridesLauncherEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "task.env")
	require.NoError(t, os.WriteFile(envPath, []byte("# comment\nPATH=/usr/bin:/bin\nFOO=bar\n\nBAZ=qux  \n"), 0644))

	doc := map[string]interface{}{
		"tasks": []interface{}{
			map[string]interface{}{"name": "a", "program": "true", "env-file": envPath},
		},
	}
	got, err := launchfile.LoadWithEnv(doc, "/cwd", testEnv())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"PATH": "/usr/bin:/bin", "FOO": "bar", "BAZ": "qux"}, got.Specs[0].Environment)
}

func TestParseYAML(t *testing.T) {
	tree, err := launchfile.ParseYAML([]byte("name: demo\ntasks: []\n"))
	require.NoError(t, err)
	require.Equal(t, "demo", tree["name"])
}
