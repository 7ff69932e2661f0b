package supervisor

import (
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/drekar/launch/internal/container"
	"github.com/sirupsen/logrus"
)

// ChildSupervisor is the per-child state machine of spec component 4.C:
// delay → spawn → tail stdio → wait → restart-or-finalize.
type ChildSupervisor struct {
	spec       ChildSpec
	backend    container.Backend
	log        *childLog
	logger     logrus.FieldLogger
	screenEcho bool

	groupEvents chan<- StateChangedEvent
	exitTrigger *ExitTrigger

	closed     atomic.Bool
	attempt    atomic.Int32
	mu         sync.Mutex
	state      ChildState
	handle     container.Handle
	exitStatus int
}

// NewChildSupervisor constructs a supervisor for spec around backend,
// writing its logs under logDir and sending state-change events to
// groupEvents. exitTrigger is the shared one-shot shutdown signal.
func NewChildSupervisor(
	spec ChildSpec,
	backend container.Backend,
	logDir string,
	screenEcho bool,
	groupEvents chan<- StateChangedEvent,
	exitTrigger *ExitTrigger,
	logger logrus.FieldLogger,
) (*ChildSupervisor, error) {
	cl, err := openChildLog(logDir, spec.Name, screenEcho)
	if err != nil {
		return nil, err
	}
	return &ChildSupervisor{
		spec:        spec,
		backend:     backend,
		log:         cl,
		logger:      logger.WithField("child", spec.Name),
		screenEcho:  screenEcho,
		groupEvents: groupEvents,
		exitTrigger: exitTrigger,
		state:       StateInit,
		exitStatus:  -1,
	}, nil
}

func (c *ChildSupervisor) Name() string { return c.spec.Name }

// Stopped reports whether no container is currently held — true in
// every state except RUNNING.
func (c *ChildSupervisor) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle == nil
}

func (c *ChildSupervisor) State() ChildState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ChildSupervisor) ExitStatus() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitStatus
}

// Close sets the keep-going flag false and forwards soft_stop with the
// current attempt count, then increments it — successive calls from
// D's shutdown loop escalate automatically on family W (4.C).
func (c *ChildSupervisor) Close() error {
	c.closed.Store(true)
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return nil
	}
	attempt := int(c.attempt.Add(1)) - 1
	return h.SoftStop(attempt)
}

// Kill forwards hard_kill to the currently held container, if any.
func (c *ChildSupervisor) Kill() error {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.HardKill()
}

func (c *ChildSupervisor) setState(s ChildState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.groupEvents <- StateChangedEvent{Name: c.spec.Name, State: s}
}

func (c *ChildSupervisor) setHandle(h container.Handle) {
	c.mu.Lock()
	c.handle = h
	c.mu.Unlock()
}

// releaseHandle clears the held handle and records exitStatus, then
// disposes the container h held (releasing its task scope / job object
// / session) — the STOPPED/TERMINAL container-release step (4.C), run
// whether the child is about to be respawned or finalized for good. h
// is nil when Spawn itself failed, in which case there is no container
// to dispose.
func (c *ChildSupervisor) releaseHandle(h container.Handle, exitStatus int) {
	c.mu.Lock()
	c.handle = nil
	c.exitStatus = exitStatus
	c.mu.Unlock()

	if h == nil {
		return
	}
	if err := h.Dispose(); err != nil {
		c.logger.WithError(err).Debug("dispose failed")
	}
}

// Run drives the state machine to completion, per 4.C's pseudocode. It
// blocks until the child reaches TERMINAL.
func (c *ChildSupervisor) Run() {
	if c.spec.StartDelay > 0 {
		c.setState(StateDelay)
		select {
		case <-time.After(c.spec.StartDelay):
		case <-c.exitTrigger.Done():
			c.finalize()
			return
		}
	}

	backOff := backoff.NewConstantBackOff(c.spec.RestartBackoff)

	for {
		c.setState(StateStartPending)

		h, err := c.backend.Spawn(container.SpawnSpec{
			Program: c.spec.Program,
			Args:    c.spec.Args,
			Env:     envSlice(c.spec.Environment),
			Cwd:     c.spec.Cwd,
		})
		if err != nil {
			c.logFailure("spawn failed", err)
			c.releaseHandle(nil, -1)
			if c.spec.QuitOnTerminate {
				c.exitTrigger.Fire()
			} else if c.spec.Restart && c.shouldRestart(backOff) {
				continue
			}
			c.finalize()
			return
		}

		c.setHandle(h)
		c.setState(StateRunning)

		exitStatus := c.drainAndWait(h)
		c.releaseHandle(h, exitStatus)
		c.setState(StateStopped)

		if c.spec.QuitOnTerminate {
			c.exitTrigger.Fire()
			c.finalize()
			return
		}
		if !c.spec.Restart {
			c.finalize()
			return
		}
		if c.shouldRestart(backOff) {
			continue
		}
		c.finalize()
		return
	}
}

// shouldRestart waits up to restart_backoff on the exit trigger,
// racing a fixed delay (cenkalti/backoff's constant policy, since
// spec invariant 5 requires the *same* delay every time, never
// exponential) against shutdown. Returns false when close was
// requested or the trigger fired first.
func (c *ChildSupervisor) shouldRestart(backOff backoff.BackOff) bool {
	if c.closed.Load() {
		return false
	}
	c.setState(StateDelay)
	delay := backOff.NextBackOff()
	select {
	case <-time.After(delay):
		return !c.closed.Load()
	case <-c.exitTrigger.Done():
		return false
	}
}

// drainAndWait concurrently tails stdout/stderr to the child's log
// files (echoing to the terminal iff screen_echo is set, flushing
// after every line) and blocks until the process exits, returning its
// normalized exit status.
func (c *ChildSupervisor) drainAndWait(h container.Handle) int {
	var wg sync.WaitGroup
	wg.Add(2)
	go c.drainLines(h.Stdout(), c.log.stdout, &wg)
	go c.drainLines(h.Stderr(), c.log.stderr, &wg)

	<-h.Wait()
	wg.Wait()
	return h.ExitStatus()
}

func (c *ChildSupervisor) drainLines(sc container.LineScanner, out io.Writer, wg *sync.WaitGroup) {
	defer wg.Done()
	for sc.Scan() {
		writeLine(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		c.logger.WithError(err).Debug("stdio drain error")
	}
}

// logFailure records a spawn/drain/wait failure with a stack trace to
// the child's own stderr log (4.C "Error handling inside the loop").
func (c *ChildSupervisor) logFailure(msg string, err error) {
	c.logger.WithError(err).Error(msg)
	fmt.Fprintf(c.log.stderr, "[drekar-launch] %s: %v\n%s\n", msg, err, debug.Stack())
}

func (c *ChildSupervisor) finalize() {
	c.setState(StateTerminal)
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
