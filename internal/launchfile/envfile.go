package launchfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// parseEnvFile builds an environment map solely from path, overriding
// the launcher's own environment entirely (4.E "env-file"). Lines are
// KEY=VALUE; blank lines and '#'-prefixed comments are stripped first,
// matching original_source/drekar_launch.py's env-file reader
// (supplemented behavior, spec.md is silent on comment handling).
func parseEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env-file %s: %w", path, err)
	}
	defer f.Close()

	env := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("env-file %s: malformed line %q", path, line)
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		env[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read env-file %s: %w", path, err)
	}
	return env, nil
}
