//go:build !windows

package launchfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveExecutable returns program unchanged if it already names a
// directory component, otherwise resolves it via env's PATH, erroring
// if it cannot be found (4.E "Executable resolution").
func resolveExecutable(program string, env map[string]string) (string, error) {
	if strings.ContainsRune(program, filepath.Separator) {
		return program, nil
	}

	pathVar := env["PATH"]
	for _, dir := range filepath.SplitList(pathVar) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, program)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && isExecutable(info.Mode()) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("program %q not found on PATH", program)
}

func isExecutable(mode os.FileMode) bool {
	return mode&0111 != 0
}
