// Package statuswindow is a placeholder for the optional GUI status
// window spec §1 explicitly places out of scope ("a native status
// window is a future enhancement, not required here"). NoopWindow
// satisfies the shape cmd/drekar-launch wires a status reporter
// through, so a real implementation can be dropped in later without
// touching the wiring in main.go.
package statuswindow

// Reporter receives child state transitions for display. main.go
// creates one regardless of --gui and calls GroupClosing on shutdown;
// the supervisor does not hold a Reporter, so nothing in this
// repository calls ChildStateChanged.
type Reporter interface {
	ChildStateChanged(name, state string)
	GroupClosing()
}

// NoopWindow discards every event. It is the only Reporter this
// repository implements; --gui is accepted and parsed but has no
// effect beyond selecting NoopWindow today.
type NoopWindow struct{}

func (NoopWindow) ChildStateChanged(name, state string) {}
func (NoopWindow) GroupClosing()                        {}
