// scheduler.go: real-time task scheduler — one OS thread per task
//
// Each task runs on a dedicated, locked OS thread with a priority band, CPU
// affinity, optional memory locking, absolute-time periodic wakeups (to
// avoid drift), and a control mailbox (Start/Pause/Resume/Stop) that
// acknowledges messages that don't apply to the current state as no-ops
// rather than errors.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"runtime"
	"sync"
	"time"
)

// Priority is one of the four real-time priority bands a task can request.
// Mapping to concrete OS-level numeric levels happens in platform-specific
// affinity_linux.go (affinity_other.go has no mapping).
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Kind identifies the role a task plays in the pipeline; it has no effect
// on scheduling mechanics but is carried for logging and stats labeling.
type Kind int

const (
	Acquisition Kind = iota
	Processing
	Monitoring
)

func (k Kind) String() string {
	switch k {
	case Acquisition:
		return "acquisition"
	case Processing:
		return "processing"
	case Monitoring:
		return "monitoring"
	default:
		return "unknown"
	}
}

// State is a task's lifecycle state.
type State int

const (
	NotStarted State = iota
	Running
	Paused
	Finished
	Error
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Config is a task's real-time configuration.
type Config struct {
	Priority      Priority
	PeriodMs      uint64 // 0 means aperiodic
	DeadlineMs    uint64 // 0 means no deadline tracking
	CPUAffinity   []int
	LockMemory    bool
	UseRtSched    bool
}

// Stats accumulates a task's execution statistics until an explicit Reset.
type Stats struct {
	Executions      uint64
	MinExecTime     time.Duration
	MaxExecTime     time.Duration
	AvgExecTime     time.Duration
	DeadlineMisses  uint64
	MinJitter       time.Duration
	MaxJitter       time.Duration
	AvgJitter       time.Duration
}

// Body is the unit of work a task repeats each iteration. ctl lets the body
// cooperatively notice a pending Stop between units of work for aperiodic
// tasks that don't otherwise have a natural polling point. A non-nil error
// moves the task to the Error state and halts further execution.
type Body func(ctl *Control) error

// Control is the per-task control mailbox. A message that doesn't apply to
// the current state (e.g. Pause on a NotStarted task) is acknowledged as a
// no-op rather than an error; each method here does exactly that.
type Control struct {
	mu      sync.Mutex
	state   State
	pauseCh chan struct{}
	stopCh  chan struct{}
	resumed chan struct{}
}

func newControl() *Control {
	return &Control{
		state:   NotStarted,
		pauseCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		resumed: make(chan struct{}, 1),
	}
}

// State returns the task's current lifecycle state.
func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Control) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Stopped reports whether a Stop has been requested, for a body to check
// at a natural yield point.
func (c *Control) Stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// waitIfPaused blocks the calling goroutine while the task is Paused,
// returning false if a Stop arrives while waiting.
func (c *Control) waitIfPaused() bool {
	for {
		c.mu.Lock()
		state := c.state
		c.mu.Unlock()
		if state != Paused {
			return true
		}
		select {
		case <-c.resumed:
			continue
		case <-c.stopCh:
			return false
		}
	}
}

// Start transitions NotStarted -> Running; a no-op from any other state.
func (c *Control) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == NotStarted {
		c.state = Running
	}
}

// Pause transitions Running -> Paused; a no-op otherwise.
func (c *Control) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		c.state = Paused
	}
}

// Resume transitions Paused -> Running; a no-op otherwise.
func (c *Control) Resume() {
	c.mu.Lock()
	if c.state == Paused {
		c.state = Running
	}
	c.mu.Unlock()
	select {
	case c.resumed <- struct{}{}:
	default:
	}
}

// Stop transitions any state except Error to Finished (Error is kept) and
// releases a waiting body.
func (c *Control) Stop() {
	c.mu.Lock()
	if c.state != Finished && c.state != Error {
		c.state = Finished
	}
	c.mu.Unlock()
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	select {
	case c.resumed <- struct{}{}:
	default:
	}
}

// Task is a single scheduled unit: identity, RT config, lifecycle state,
// stats, and the control mailbox.
type Task struct {
	ID      string
	Kind    Kind
	Config  Config
	control *Control

	statsMu  sync.Mutex
	stats    Stats
	lastErr  error

	done chan struct{}
}

// Control returns the task's control mailbox.
func (t *Task) Control() *Control { return t.control }

// State returns the task's current lifecycle state.
func (t *Task) State() State { return t.control.State() }

// LastError returns the error that moved the task to Error, if any.
func (t *Task) LastError() error {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.lastErr
}

// Stats returns a snapshot of the task's execution statistics.
func (t *Task) Stats() Stats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

// ResetStats zeros the task's execution statistics.
func (t *Task) ResetStats() {
	t.statsMu.Lock()
	t.stats = Stats{}
	t.statsMu.Unlock()
}

// Done returns a channel closed when the task body returns, whatever the
// reason (Stop, error, or natural completion of an aperiodic body).
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) recordExecution(execTime time.Duration, jitter time.Duration, hasJitter bool) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()

	if t.stats.Executions == 0 {
		t.stats.MinExecTime = execTime
		t.stats.MaxExecTime = execTime
		t.stats.AvgExecTime = execTime
	} else {
		if execTime < t.stats.MinExecTime {
			t.stats.MinExecTime = execTime
		}
		if execTime > t.stats.MaxExecTime {
			t.stats.MaxExecTime = execTime
		}
		t.stats.AvgExecTime = movingAvg(t.stats.AvgExecTime, t.stats.Executions, execTime)
	}

	if hasJitter {
		if t.stats.Executions == 0 {
			t.stats.MinJitter = jitter
			t.stats.MaxJitter = jitter
			t.stats.AvgJitter = jitter
		} else {
			if jitter < t.stats.MinJitter {
				t.stats.MinJitter = jitter
			}
			if jitter > t.stats.MaxJitter {
				t.stats.MaxJitter = jitter
			}
			t.stats.AvgJitter = movingAvg(t.stats.AvgJitter, t.stats.Executions, jitter)
		}
	}

	if t.Config.DeadlineMs > 0 {
		deadline := time.Duration(t.Config.DeadlineMs) * time.Millisecond
		if execTime > deadline {
			t.stats.DeadlineMisses++
		}
	}

	t.stats.Executions++
}

func movingAvg(avg time.Duration, n uint64, sample time.Duration) time.Duration {
	total := int64(avg)*int64(n) + int64(sample)
	return time.Duration(total / int64(n+1))
}

// Scheduler owns a set of tasks, each run on its own OS thread.
type Scheduler struct {
	mu    sync.Mutex
	tasks []*Task
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Spawn creates a task thread for body under the given identity and RT
// config. It does not start the body running; the first Start control
// message does that. Spawn applies OS-level priority/affinity/memory
// locking on the task's own thread once it begins running.
func (s *Scheduler) Spawn(id string, kind Kind, cfg Config, body Body) *Task {
	t := &Task{
		ID:      id,
		Kind:    kind,
		Config:  cfg,
		control: newControl(),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()

	go s.run(t, body)
	return t
}

func (s *Scheduler) run(t *Task, body Body) {
	defer close(t.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	applyRtSettings(t.ID, t.Config)

	ctl := t.control
	// Wait for the first Start.
	for ctl.State() == NotStarted {
		time.Sleep(time.Millisecond)
		if ctl.Stopped() {
			return
		}
	}

	if t.Config.PeriodMs == 0 {
		s.runAperiodic(t, body)
		return
	}
	s.runPeriodic(t, body)
}

func (s *Scheduler) runAperiodic(t *Task, body Body) {
	ctl := t.control
	for {
		if ctl.Stopped() {
			return
		}
		if !ctl.waitIfPaused() {
			return
		}
		start := time.Now()
		err := body(ctl)
		elapsed := time.Since(start)
		t.recordExecution(elapsed, 0, false)
		if err != nil {
			t.statsMu.Lock()
			t.lastErr = err
			t.statsMu.Unlock()
			ctl.setState(Error)
			return
		}
		if ctl.State() == Finished {
			return
		}
	}
}

func (s *Scheduler) runPeriodic(t *Task, body Body) {
	ctl := t.control
	period := time.Duration(t.Config.PeriodMs) * time.Millisecond
	scheduled := time.Now()

	for {
		if ctl.Stopped() {
			return
		}
		if !ctl.waitIfPaused() {
			return
		}

		now := time.Now()
		if d := scheduled.Sub(now); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctl.stopCh:
				timer.Stop()
				return
			}
		}

		actualStart := time.Now()
		jitter := actualStart.Sub(scheduled)
		if jitter < 0 {
			jitter = -jitter
		}

		err := body(ctl)
		elapsed := time.Since(actualStart)
		t.recordExecution(elapsed, jitter, true)

		if err != nil {
			t.statsMu.Lock()
			t.lastErr = err
			t.statsMu.Unlock()
			ctl.setState(Error)
			return
		}
		if ctl.State() == Finished {
			return
		}

		scheduled = scheduled.Add(period)
	}
}

// Tasks returns a snapshot of all spawned tasks.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// StartAll sends Start to every task.
func (s *Scheduler) StartAll() {
	for _, t := range s.Tasks() {
		t.control.Start()
	}
}

// StopAll sends Stop to every task.
func (s *Scheduler) StopAll() {
	for _, t := range s.Tasks() {
		t.control.Stop()
	}
}

// JoinAll waits for every task to finish, up to timeout. It returns false
// if the timeout elapsed with tasks still running (the caller should
// escalate to a forced termination and move the owning pipeline to Error).
func (s *Scheduler) JoinAll(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for _, t := range s.Tasks() {
		select {
		case <-t.Done():
		case <-deadline:
			return false
		}
	}
	return true
}
