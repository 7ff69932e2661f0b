//go:build windows

package launchfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var executableExts = []string{".exe", ".bat", ".cmd", ".com"}

// resolveExecutable is the Windows variant: PATH resolution also tries
// each PATHEXT-style suffix, since Windows has no execute bit.
func resolveExecutable(program string, env map[string]string) (string, error) {
	if strings.ContainsRune(program, filepath.Separator) || strings.ContainsRune(program, ':') {
		return program, nil
	}

	pathVar := env["PATH"]
	candidates := []string{program}
	if filepath.Ext(program) == "" {
		for _, ext := range executableExts {
			candidates = append(candidates, program+ext)
		}
	}

	for _, dir := range filepath.SplitList(pathVar) {
		if dir == "" {
			continue
		}
		for _, name := range candidates {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("program %q not found on PATH", program)
}
