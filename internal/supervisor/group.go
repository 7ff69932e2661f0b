package supervisor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/drekar/launch/internal/cgroupscope"
	"github.com/drekar/launch/internal/container"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownBudget   = 15 * time.Second
	shutdownTick     = 100 * time.Millisecond
	escalationPeriod = 1 * time.Second
	postKillGrace    = 2 * time.Second
)

// Group is the singleton per launch (spec component 4.D): it owns
// every ChildSupervisor by name, orchestrates start-all and the
// bounded shutdown protocol, and aggregates the final exit status.
type Group struct {
	Name       string
	LogDir     string
	ScreenEcho bool

	backend     container.Backend
	scope       *cgroupscope.Scope
	logger      logrus.FieldLogger
	exitTrigger *ExitTrigger

	mu           sync.Mutex
	children     map[string]*ChildSupervisor
	running      map[string]struct{}
	closed       bool
	sentinelProc *os.Process

	events  chan StateChangedEvent
	lastErr int
}

// NewGroup constructs a Group ready to start children. backend and
// scope are platform-selected by the caller (component F).
func NewGroup(name, logDir string, screenEcho bool, backend container.Backend, scope *cgroupscope.Scope, logger logrus.FieldLogger) *Group {
	g := &Group{
		Name:        name,
		LogDir:      logDir,
		ScreenEcho:  screenEcho,
		backend:     backend,
		scope:       scope,
		logger:      logger,
		exitTrigger: NewExitTrigger(),
		children:    make(map[string]*ChildSupervisor),
		running:     make(map[string]struct{}),
		events:      make(chan StateChangedEvent, 64),
		lastErr:     0,
	}
	go g.consumeEvents()
	return g
}

// ExitTrigger returns the shared one-shot shutdown signal so callers
// (component F) can wire operator signals into it.
func (g *Group) ExitTrigger() *ExitTrigger { return g.exitTrigger }

// SetSentinelProcess records the detached sentinel helper so Close can
// kill it directly instead of waiting for its own poll to notice the
// scope is gone.
func (g *Group) SetSentinelProcess(p *os.Process) {
	g.mu.Lock()
	g.sentinelProc = p
	g.mu.Unlock()
}

// Running returns the names of every child that has been started and
// has not yet reached TERMINAL — the set processStateChanged maintains
// by deleting a name once its supervisor finalizes.
func (g *Group) Running() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.running))
	for name := range g.running {
		names = append(names, name)
	}
	return names
}

func (g *Group) consumeEvents() {
	for ev := range g.events {
		g.processStateChanged(ev.Name, ev.State)
	}
}

// processStateChanged is the recipient of supervisor-emitted state
// events (4.D). Deregistration keys off TERMINAL rather than STOPPED:
// a STOPPED child with restart=true and an unfired exit trigger is
// still going to respawn, so removing it from running at STOPPED would
// let a concurrent StartAll re-create a duplicate supervisor for the
// same name. TERMINAL is the point a child is provably done for good.
func (g *Group) processStateChanged(name string, state ChildState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if state == StateTerminal {
		if sup, ok := g.children[name]; ok {
			if st := sup.ExitStatus(); st != 0 && st != -1 {
				g.lastErr = st
			}
		}
		delete(g.running, name)
	}
}

// StartAll creates and launches one ChildSupervisor per spec for every
// name not already registered. Idempotent; safe to call once at
// startup. Fails the whole call if the Group is already closed.
func (g *Group) StartAll(specs []ChildSpec) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return fmt.Errorf("start_all: group %q is closed", g.Name)
	}
	var toStart []ChildSpec
	for _, spec := range specs {
		if _, exists := g.children[spec.Name]; !exists {
			toStart = append(toStart, spec)
		}
	}
	g.mu.Unlock()

	eg, _ := errgroup.WithContext(context.Background())
	for _, spec := range toStart {
		spec := spec
		eg.Go(func() error {
			return g.start(spec)
		})
	}
	return eg.Wait()
}

// start launches a single child from spec. It fails if the Group is
// closed and does nothing if a supervisor is already registered under
// spec.Name. It takes a spec rather than a name, so there is no lookup
// by name and no unknown-name error.
func (g *Group) start(spec ChildSpec) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return fmt.Errorf("start %q: group is closed", spec.Name)
	}
	if _, exists := g.children[spec.Name]; exists {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	sup, err := NewChildSupervisor(spec, g.backend, g.LogDir, g.ScreenEcho, g.events, g.exitTrigger, g.logger)
	if err != nil {
		return fmt.Errorf("construct supervisor for %q: %w", spec.Name, err)
	}

	g.mu.Lock()
	g.children[spec.Name] = sup
	g.running[spec.Name] = struct{}{}
	g.mu.Unlock()

	go sup.Run()
	return nil
}

// StopAll atomically sets closed, then calls Close() (soft-stop,
// first attempt) on every registered child. Idempotent.
func (g *Group) StopAll() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	sups := make([]*ChildSupervisor, 0, len(g.children))
	for _, sup := range g.children {
		sups = append(sups, sup)
	}
	g.mu.Unlock()

	g.logger.WithField("running", g.Running()).Info("stopping group")

	for _, sup := range sups {
		if err := sup.Close(); err != nil {
			g.logger.WithError(err).WithField("child", sup.Name()).Debug("soft-stop failed")
		}
	}
}

// notStopped returns every currently-registered child whose
// supervisor reports it still holds a container.
func (g *Group) notStopped() []*ChildSupervisor {
	g.mu.Lock()
	defer g.mu.Unlock()
	var live []*ChildSupervisor
	for _, sup := range g.children {
		if !sup.Stopped() {
			live = append(live, sup)
		}
	}
	return live
}

// WaitAllStopped runs the bounded shutdown protocol (4.D): a 15s
// budget, escalating the soft-stop once per second, then hard_kill
// for any stragglers plus a 2s grace before returning.
func (g *Group) WaitAllStopped() {
	deadline := time.Now().Add(shutdownBudget)
	lastEscalation := time.Now()
	ticker := time.NewTicker(shutdownTick)
	defer ticker.Stop()

	for {
		live := g.notStopped()
		if len(live) == 0 {
			return
		}
		if time.Now().After(deadline) {
			break
		}
		if time.Since(lastEscalation) >= escalationPeriod {
			lastEscalation = time.Now()
			for _, sup := range live {
				if err := sup.Close(); err != nil {
					g.logger.WithError(err).WithField("child", sup.Name()).Debug("escalated soft-stop failed")
				}
			}
		}
		<-ticker.C
	}

	live := g.notStopped()
	if len(live) > 0 {
		g.logger.Warn("shutdown deadline exceeded, sending hard kill")
		for _, sup := range live {
			if err := sup.Kill(); err != nil {
				g.logger.WithError(err).WithField("child", sup.Name()).Debug("hard kill failed")
			}
		}
		time.Sleep(postKillGrace)
	}
}

// ExitStatus aggregates every child's last observed exit: 0 if all
// exited 0, else the last-observed non-zero status (last-writer-wins).
func (g *Group) ExitStatus() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Close is final disposal: tears down the cgroup scope (releasing any
// surviving container membership) — any survivor dies with its
// container (4.D ordering guarantee).
func (g *Group) Close() {
	g.scope.Teardown()

	g.mu.Lock()
	sentinel := g.sentinelProc
	g.mu.Unlock()
	if sentinel != nil {
		_ = sentinel.Kill()
	}
	// events is intentionally left open: some children may still be
	// mid-way to TERMINAL even after every container is released, and
	// the process exits shortly after this call anyway (4.F).
}
