// idle_strategies.go: public factory functions for processing-task idle behavior
//
// Thin wrappers over internal/ringbuf's idle strategies, exposed at the
// package root so callers can construct one without importing the internal
// package directly. Config has no idle-strategy field: the pipeline's
// processing tasks sleep one millisecond on an empty read and use none of
// these strategies.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package argos

import (
	"time"

	"github.com/agilira/argos/internal/ringbuf"
)

// IdleStrategy controls how a processing task backs off when it finds the
// ring buffer empty. This type alias exposes the internal interface for
// configuration purposes.
type IdleStrategy = ringbuf.IdleStrategy

// NewSpinningIdleStrategy returns a strategy that busy-spins without ever
// yielding the CPU. Minimum latency, ~100% of one core while idle.
func NewSpinningIdleStrategy() IdleStrategy {
	return ringbuf.NewSpinningIdleStrategy()
}

// NewSleepingIdleStrategy returns a strategy that spins up to maxSpins
// times before sleeping sleepDuration on each subsequent empty read.
func NewSleepingIdleStrategy(sleepDuration time.Duration, maxSpins int) IdleStrategy {
	return ringbuf.NewSleepingIdleStrategy(sleepDuration, maxSpins)
}

// NewYieldingIdleStrategy returns a strategy that calls runtime.Gosched
// every maxSpins empty reads, without ever sleeping.
func NewYieldingIdleStrategy(maxSpins int) IdleStrategy {
	return ringbuf.NewYieldingIdleStrategy(maxSpins)
}

// NewProgressiveIdleStrategy returns the adaptive strategy: hot-spin, then
// occasional yield, then exponential backoff sleep, resetting on the next
// non-empty read.
func NewProgressiveIdleStrategy() IdleStrategy {
	return ringbuf.NewProgressiveIdleStrategy()
}
