// monitor.go: periodic health monitor driving auto-recovery on desync
//
// Runs on its own scheduler task at MetricsIntervalMs: snapshot metrics,
// check for buffer overflow pressure, producer/consumer desync, and
// acquisition liveness, then update the pipeline's status flags and, when
// auto-recovery is enabled, reset the ring buffer on a detected desync.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package argos

import (
	"time"

	"github.com/agilira/argos/scheduler"
)

// monitorTick snapshots metrics, detects overflow pressure, desync, and
// liveness, updates status flags, and requests a buffer reset on desync.
func (p *Pipeline) monitorTick() {
	usage := p.ring.UsageFraction()
	overflow := usage >= p.cfg.BufferUsageThreshold
	p.overflowPressure.Store(overflow)
	if overflow {
		GetLogger().Warn("ring buffer overflow pressure", "usage_fraction", usage)
	}

	lastAcq := p.lastAcquisitionNanos.Load()
	lastProc := p.lastProcessingNanos.Load()
	desynced := false
	if lastAcq != 0 && lastProc != 0 {
		spread := time.Duration(lastAcq - lastProc)
		if spread < 0 {
			spread = -spread
		}
		desynced = spread > p.cfg.DesyncThreshold
	}
	p.desynchronized.Store(desynced)
	if desynced {
		p.mx.RecordDesync()
		if p.cfg.EnableAutoRecovery {
			p.ring.Reset()
			p.mx.RecordRecovery()
			GetLogger().Warn("monitor: desync detected, ring buffer reset")
		} else {
			GetLogger().Warn("monitor: desync detected, auto-recovery disabled")
		}
	}

	degraded := false
	if p.cfg.TargetAcquisitionRate > 0 {
		rate := p.mx.GetStats().AcquisitionRate
		floor := p.cfg.TargetAcquisitionRate * p.cfg.MinAcquisitionRateFraction
		degraded = rate < floor
	}
	for _, t := range p.acqTasks {
		if t.State() == scheduler.Error {
			degraded = true
			break
		}
	}
	p.degraded.Store(degraded)
	if degraded {
		GetLogger().Warn("monitor: acquisition degraded")
	}
}
