// idle.go: idle/backoff strategies for processing tasks polling an empty ring
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package ringbuf

import (
	"runtime"
	"sync/atomic"
	"time"
)

// IdleStrategy controls how a processing task waits when Read finds the
// buffer empty, backing off rather than busy-looping the CPU at full tilt;
// which strategy suits a deployment depends on the acceptable latency/CPU
// tradeoff for that camera line.
type IdleStrategy interface {
	// Idle is called once per empty Read. It may sleep or yield.
	Idle()
	// Reset is called after a non-empty Read to clear backoff state.
	Reset()
	// String names the strategy for logging.
	String() string
}

// SpinningIdleStrategy never yields the CPU. Minimum latency, ~100% of one
// core while the buffer is empty.
type SpinningIdleStrategy struct{}

// NewSpinningIdleStrategy returns a strategy that busy-spins.
func NewSpinningIdleStrategy() *SpinningIdleStrategy { return &SpinningIdleStrategy{} }

func (s *SpinningIdleStrategy) Idle()          {}
func (s *SpinningIdleStrategy) Reset()         {}
func (s *SpinningIdleStrategy) String() string { return "spinning" }

// SleepingIdleStrategy spins briefly, then sleeps a fixed duration (one
// millisecond unless configured otherwise) once the buffer is found empty.
type SleepingIdleStrategy struct {
	sleepDuration time.Duration
	maxSpins      int
	spins         int64
}

// NewSleepingIdleStrategy returns a strategy that spins up to maxSpins
// times before sleeping sleepDuration on each subsequent empty read.
func NewSleepingIdleStrategy(sleepDuration time.Duration, maxSpins int) *SleepingIdleStrategy {
	if sleepDuration <= 0 {
		sleepDuration = time.Millisecond
	}
	if maxSpins < 0 {
		maxSpins = 0
	}
	return &SleepingIdleStrategy{sleepDuration: sleepDuration, maxSpins: maxSpins}
}

func (s *SleepingIdleStrategy) Idle() {
	spins := atomic.AddInt64(&s.spins, 1)
	if spins <= int64(s.maxSpins) {
		return
	}
	time.Sleep(s.sleepDuration)
}

func (s *SleepingIdleStrategy) Reset()         { atomic.StoreInt64(&s.spins, 0) }
func (s *SleepingIdleStrategy) String() string { return "sleeping" }

// YieldingIdleStrategy spins, yielding to the Go scheduler every maxSpins
// iterations, without ever sleeping.
type YieldingIdleStrategy struct {
	maxSpins int
	spins    int64
}

// NewYieldingIdleStrategy returns a strategy that calls runtime.Gosched
// every maxSpins empty reads.
func NewYieldingIdleStrategy(maxSpins int) *YieldingIdleStrategy {
	if maxSpins <= 0 {
		maxSpins = 1000
	}
	return &YieldingIdleStrategy{maxSpins: maxSpins}
}

func (s *YieldingIdleStrategy) Idle() {
	spins := atomic.AddInt64(&s.spins, 1)
	if spins >= int64(s.maxSpins) {
		runtime.Gosched()
		atomic.StoreInt64(&s.spins, 0)
	}
}

func (s *YieldingIdleStrategy) Reset()         { atomic.StoreInt64(&s.spins, 0) }
func (s *YieldingIdleStrategy) String() string { return "yielding" }

// ProgressiveIdleStrategy hot-spins, then yields occasionally, then backs
// off with exponentially increasing sleeps, resetting on the next non-empty
// read: a tradeoff suited to variable acquisition rates.
type ProgressiveIdleStrategy struct {
	spins        int64
	sleepCounter int64

	hotSpinThreshold  int64
	warmSpinThreshold int64
	sleepDuration     time.Duration
	maxSleepDuration  time.Duration
}

// NewProgressiveIdleStrategy returns the adaptive strategy.
func NewProgressiveIdleStrategy() *ProgressiveIdleStrategy {
	return &ProgressiveIdleStrategy{
		hotSpinThreshold:  1000,
		warmSpinThreshold: 10000,
		sleepDuration:     time.Microsecond,
		maxSleepDuration:  time.Millisecond,
	}
}

func (s *ProgressiveIdleStrategy) Idle() {
	spins := atomic.AddInt64(&s.spins, 1)

	switch {
	case spins < s.hotSpinThreshold:
		return
	case spins < s.warmSpinThreshold:
		if spins&7 == 0 {
			runtime.Gosched()
		}
	default:
		sleepCounter := atomic.LoadInt64(&s.sleepCounter)
		shift := sleepCounter / 2
		if shift > 10 {
			shift = 10
		}
		d := s.sleepDuration * time.Duration(int64(1)<<uint(shift))
		if d > s.maxSleepDuration {
			d = s.maxSleepDuration
		}
		time.Sleep(d)
		atomic.AddInt64(&s.sleepCounter, 1)
		atomic.StoreInt64(&s.spins, 0)
	}
}

func (s *ProgressiveIdleStrategy) Reset() {
	atomic.StoreInt64(&s.spins, 0)
	atomic.StoreInt64(&s.sleepCounter, 0)
}

func (s *ProgressiveIdleStrategy) String() string { return "progressive" }
