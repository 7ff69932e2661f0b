// Package supervisor implements the per-child state machine and the
// group supervisor that owns every child: start-all, bounded shutdown,
// and exit-status aggregation.
package supervisor

import "time"

// ChildSpec is an immutable description of one managed child, produced
// by the launch-file loader and consumed by a ChildSupervisor for the
// life of a launch. Nothing in this package mutates a ChildSpec once
// constructed.
type ChildSpec struct {
	Name    string
	Program string
	Args    []string
	Cwd     string

	// Environment is the complete variable → value mapping the child
	// sees, already merged by the loader. Never aliased across specs.
	Environment map[string]string

	Restart         bool
	RestartBackoff  time.Duration
	StartDelay      time.Duration
	QuitOnTerminate bool

	Tags []string
}
