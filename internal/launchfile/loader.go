// Package launchfile implements spec component 4.E: validating a
// parsed launch document into ChildSpecs, resolving executables, and
// merging environments. Parsing the document's bytes into the generic
// tree of maps/lists/scalars this package consumes is the external
// collaborator named in spec §1 — done here with gopkg.in/yaml.v3.
package launchfile

import (
	"fmt"
	"os"
	"time"

	"github.com/drekar/launch/internal/supervisor"
	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"
)

// Document is the loader's result: the optional launch name plus the
// ordered ChildSpecs built from it.
type Document struct {
	Name   string
	Specs  []supervisor.ChildSpec
}

// ParseYAML unmarshals raw launch-file bytes into the generic tree of
// maps/lists/scalars that Load validates.
func ParseYAML(data []byte) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse launch document: %w", err)
	}
	return doc, nil
}

// LoadFile reads path, parses it as YAML, and validates it with Load.
func LoadFile(path, defaultCwd string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read launch file %s: %w", path, err)
	}
	doc, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}
	return Load(doc, defaultCwd)
}

// Load validates a parsed document into a launch name and an ordered
// list of ChildSpecs (4.E). Load uses the launcher's own os.Environ()
// as the base environment; tests can supply a different one via
// LoadWithEnv.
func Load(doc map[string]interface{}, defaultCwd string) (*Document, error) {
	return LoadWithEnv(doc, defaultCwd, os.Environ())
}

// LoadWithEnv is Load with an explicit launcher environment, so tests
// can supply a deterministic PATH.
func LoadWithEnv(doc map[string]interface{}, defaultCwd string, launcherEnv []string) (*Document, error) {
	name, _ := doc["name"].(string)

	rawTasks, ok := doc["tasks"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("launch document requires a 'tasks' sequence")
	}

	launcherEnvMap := envSliceToMap(launcherEnv)

	specs := make([]supervisor.ChildSpec, 0, len(rawTasks))
	seen := make(map[string]bool, len(rawTasks))
	for i, rawTask := range rawTasks {
		task, ok := rawTask.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("task %d: expected a mapping", i)
		}
		spec, err := buildSpec(task, defaultCwd, launcherEnvMap)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("task %d: duplicate child name %q", i, spec.Name)
		}
		seen[spec.Name] = true
		specs = append(specs, spec)
	}

	return &Document{Name: name, Specs: specs}, nil
}

func buildSpec(task map[string]interface{}, defaultCwd string, launcherEnv map[string]string) (supervisor.ChildSpec, error) {
	name, _ := task["name"].(string)
	if name == "" {
		return supervisor.ChildSpec{}, fmt.Errorf("missing required field 'name'")
	}

	program, _ := task["program"].(string)
	if program == "" {
		return supervisor.ChildSpec{}, fmt.Errorf("missing required field 'program'")
	}

	cwd := defaultCwd
	if v, ok := task["cwd"].(string); ok && v != "" {
		cwd = v
	}

	args, err := parseArgs(task["args"])
	if err != nil {
		return supervisor.ChildSpec{}, fmt.Errorf("field 'args': %w", err)
	}

	restart, _ := task["restart"].(bool)
	quitOnTerminate, _ := task["quit-on-terminate"].(bool)

	restartBackoff := 5 * time.Second
	if v, ok := numericValue(task["restart-backoff"]); ok {
		restartBackoff = time.Duration(v * float64(time.Second))
	}

	startDelay := time.Duration(0)
	if v, ok := numericValue(task["start-delay"]); ok {
		startDelay = time.Duration(v * float64(time.Second))
	}

	tags := parseStringList(task["tags"])

	env, err := buildEnvironment(task, launcherEnv)
	if err != nil {
		return supervisor.ChildSpec{}, fmt.Errorf("field 'environment': %w", err)
	}

	resolvedProgram, err := resolveExecutable(program, env)
	if err != nil {
		return supervisor.ChildSpec{}, err
	}

	return supervisor.ChildSpec{
		Name:            name,
		Program:         resolvedProgram,
		Args:            args,
		Cwd:             cwd,
		Environment:     env,
		Restart:         restart,
		RestartBackoff:  restartBackoff,
		StartDelay:      startDelay,
		QuitOnTerminate: quitOnTerminate,
		Tags:            tags,
	}, nil
}

// buildEnvironment merges the launcher's own environment with the
// task's environment map, unless env-file is present — in which case
// the environment is built *solely* from that file (4.E).
func buildEnvironment(task map[string]interface{}, launcherEnv map[string]string) (map[string]string, error) {
	if envFile, ok := task["env-file"].(string); ok && envFile != "" {
		return parseEnvFile(envFile)
	}

	merged := deepcopy.Copy(launcherEnv).(map[string]string)
	if rawEnv, ok := task["environment"].(map[string]interface{}); ok {
		for k, v := range rawEnv {
			merged[k] = fmt.Sprintf("%v", v)
		}
	}
	return merged, nil
}

func parseArgs(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return splitWhitespace(v), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out, nil
	default:
		return []string{fmt.Sprintf("%v", v)}, nil
	}
}

func parseStringList(raw interface{}) []string {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

func numericValue(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func envSliceToMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return m
}

func splitWhitespace(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			flush()
			continue
		}
		cur = append(cur, r)
	}
	flush()
	return out
}
