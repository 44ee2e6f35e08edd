// sync.go: multi-camera trigger synchronizer
//
// A small struct guarded by one mutex plus an atomic monotone counter, with
// a snapshot-style GetStatus() accessor in the same shape as the package
// root's GetErrorHandler()/SetErrorHandler() seam.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package sync

import (
	"errors"
	"math"
	stdsync "sync"
	"sync/atomic"
	"time"
)

// Mode selects how cameras are driven into lockstep.
type Mode int

const (
	Freerun Mode = iota
	Software
	Hardware
)

func (m Mode) String() string {
	switch m {
	case Freerun:
		return "freerun"
	case Software:
		return "software"
	case Hardware:
		return "hardware"
	default:
		return "unknown"
	}
}

// TriggerSource names the external line or clock driving Hardware mode.
type TriggerSource int

const (
	Line1 TriggerSource = iota
	Line2
	Line3
	Line4
	Encoder
	Timer
)

// Config configures a Synchronizer.
type Config struct {
	Mode              Mode
	TriggerSource     TriggerSource
	TriggerDelayUs    uint64
	TriggerIntervalUs uint64
}

// Status is a point-in-time snapshot of synchronization state.
type Status struct {
	Mode              Mode
	TriggerCount      uint64
	LastTriggerTime   time.Time
	AverageIntervalUs float64
	JitterUs          float64
	Active            bool
}

// maxWindow bounds the rolling interval history kept for jitter statistics.
const maxWindow = 100

var (
	// ErrFreerunTrigger is returned by Trigger in Freerun mode: trigger
	// events in that mode are observed, not originated.
	ErrFreerunTrigger = errors.New("sync: trigger() is invalid in Freerun mode")
	// ErrNotActive is returned by Trigger after Stop.
	ErrNotActive = errors.New("sync: synchronizer is not active")
)

// Synchronizer emits and times trigger events across N cameras.
type Synchronizer struct {
	cfg Config

	mu           stdsync.Mutex
	active       bool
	lastTrigger  time.Time
	intervals    []float64 // microseconds, ring of at most maxWindow samples
	intervalHead int

	triggerCount atomic.Uint64

	onTrigger func()

	stopCh chan struct{}
	wg     stdsync.WaitGroup
}

// New returns a Synchronizer for the given configuration.
func New(cfg Config) *Synchronizer {
	return &Synchronizer{cfg: cfg}
}

// OnTrigger registers fn to run after every accepted trigger event, letting
// a caller fan a trigger out to each camera's software-trigger endpoint.
// Replaces any previously registered callback. fn runs synchronously on the
// goroutine that called Trigger (the periodic emitter, in Software mode, or
// the caller observing a Hardware-mode pulse), outside the Synchronizer's
// lock.
func (s *Synchronizer) OnTrigger(fn func()) {
	s.mu.Lock()
	s.onTrigger = fn
	s.mu.Unlock()
}

// Start activates the synchronizer. In Software mode it begins emitting
// periodic triggers at TriggerIntervalUs; in Hardware mode it simply begins
// accepting trigger observations through Trigger. In Freerun mode Trigger
// stays rejected, so no trigger events or interval statistics are recorded.
func (s *Synchronizer) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.stopCh = make(chan struct{})
	interval := s.cfg.TriggerIntervalUs
	mode := s.cfg.Mode
	s.mu.Unlock()

	if mode == Software && interval > 0 {
		s.wg.Add(1)
		go s.emitPeriodic(time.Duration(interval) * time.Microsecond)
	}
}

func (s *Synchronizer) emitPeriodic(period time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.Trigger()
		case <-s.stopCh:
			return
		}
	}
}

// Stop deactivates the synchronizer. Configuration persists; Trigger is
// rejected until the next Start.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()
}

// Trigger records a trigger event and, if a callback is registered via
// OnTrigger, invokes it once the event is recorded. It is rejected in
// Freerun mode and after Stop.
func (s *Synchronizer) Trigger() error {
	s.mu.Lock()

	if s.cfg.Mode == Freerun {
		s.mu.Unlock()
		return ErrFreerunTrigger
	}
	if !s.active {
		s.mu.Unlock()
		return ErrNotActive
	}

	now := time.Now()
	if !s.lastTrigger.IsZero() {
		intervalUs := float64(now.Sub(s.lastTrigger).Microseconds())
		s.pushInterval(intervalUs)
	}
	s.lastTrigger = now
	s.triggerCount.Add(1)
	fn := s.onTrigger
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

func (s *Synchronizer) pushInterval(us float64) {
	if len(s.intervals) < maxWindow {
		s.intervals = append(s.intervals, us)
		return
	}
	s.intervals[s.intervalHead] = us
	s.intervalHead = (s.intervalHead + 1) % maxWindow
}

// GetStatus returns a snapshot of the synchronizer's current state.
func (s *Synchronizer) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	mean, jitter := meanAndStddev(s.intervals)
	return Status{
		Mode:              s.cfg.Mode,
		TriggerCount:      s.triggerCount.Load(),
		LastTriggerTime:   s.lastTrigger,
		AverageIntervalUs: mean,
		JitterUs:          jitter,
		Active:            s.active,
	}
}

func meanAndStddev(samples []float64) (mean, stddev float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean = sum / float64(len(samples))

	var variance float64
	for _, v := range samples {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	return mean, math.Sqrt(variance)
}
