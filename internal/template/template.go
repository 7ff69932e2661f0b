// Package template implements the --config-j2 template-expansion entry
// path of spec component 4.E, using pongo2 as the Go analogue of the
// original's jinja2.Environment(loader=FileSystemLoader(...),
// undefined=StrictUndefined).
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// varReference matches a "vars.<name>" lookup in template source, the
// only part of the context an operator-supplied --var- fills in. pongo2
// itself renders unknown variables as empty rather than erroring like
// jinja2.StrictUndefined, so this module enforces strictness for vars
// explicitly rather than relying on the engine's default leniency.
var varReference = regexp.MustCompile(`\bvars\.([A-Za-z_][A-Za-z0-9_]*)`)

func checkUndefinedVars(templateText string, vars map[string]string) error {
	for _, m := range varReference.FindAllStringSubmatch(templateText, -1) {
		name := m[1]
		if _, ok := vars[name]; !ok {
			return fmt.Errorf("undefined template variable %q: pass --var-%s=<value>", name, name)
		}
	}
	return nil
}

// goPlatform mirrors Python's sys.platform values the original
// template context exposes, so existing templates' {{ platform }}
// checks keep working verbatim.
func goPlatform() string {
	switch runtime.GOOS {
	case "windows":
		return "win32"
	case "darwin":
		return "darwin"
	default:
		return runtime.GOOS
	}
}

// ParseVar splits a "--var-<name>=<value>" CLI argument into its name
// and value. ok is false if arg isn't of that form.
func ParseVar(arg string) (name, value string, ok bool) {
	const prefix = "--var-"
	if !strings.HasPrefix(arg, prefix) {
		return "", "", false
	}
	rest := arg[len(prefix):]
	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return "", "", false
	}
	return rest[:eq], rest[eq+1:], true
}

// Render expands the template at configPath, exposing vars,
// configdir, configpath, env, and platform, and returns the rendered
// launch-document text. A vars.<name> reference whose name was never
// supplied via --var-<name>=<value> is a render failure (4.E
// "Undefined template variables must error"), checked explicitly
// before execution since pongo2's own undefined handling stays silent.
func Render(configPath string, vars map[string]string, env map[string]string) (string, error) {
	configDir := filepath.Dir(configPath)
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("resolve absolute config path: %w", err)
	}

	rawText, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", configPath, err)
	}
	if err := checkUndefinedVars(string(rawText), vars); err != nil {
		return "", err
	}

	set := pongo2.NewSet("drekar-launch", pongo2.MustNewLocalFileSystemLoader(configDir))
	tpl, err := set.FromFile(filepath.Base(configPath))
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", configPath, err)
	}

	ctx := pongo2.Context{
		"vars":       vars,
		"configdir":  configDir,
		"configpath": absPath,
		"env":        env,
		"platform":   goPlatform(),
	}

	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", configPath, err)
	}
	return out, nil
}

// EnvMap returns os.Environ() as a map, for use as the template's "env"
// context variable.
func EnvMap() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return m
}
