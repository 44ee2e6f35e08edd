// metrics.go: pipeline instrumentation
//
// Six event counters, two sliding-window rate gauges (pruned every record
// by comparing against a 60s cutoff), and two fixed-bucket latency
// histograms. GetStats returns a plain snapshot struct read directly by
// callers rather than through an exposition format. Counters reuse
// internal/ringbuf's cache-line-padded atomic, since both packages face the
// same false-sharing hot path under concurrent acquisition and processing
// tasks.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/agilira/argos/internal/ringbuf"
)

// windowSeconds bounds the sliding rate window, matching the Rust original.
const windowSeconds = 60

// latencyBuckets are the histogram boundaries, in milliseconds, shared by
// the acquisition and processing latency histograms.
var latencyBuckets = [...]float64{0.1, 0.5, 1, 2, 5, 10, 20, 50, 100}

// histogram is a fixed-bucket latency histogram. Buckets are not
// cumulative: each sample is counted once, in the smallest bucket whose
// boundary it does not exceed, or in overMax.
type histogram struct {
	mu      sync.Mutex
	buckets [len(latencyBuckets)]uint64
	overMax uint64
	count   uint64
	sum     float64
}

func (h *histogram) record(ms float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += ms
	for i, b := range latencyBuckets {
		if ms <= b {
			h.buckets[i]++
			return
		}
	}
	h.overMax++
}

// HistogramSnapshot is a point-in-time read of a histogram's bucket counts.
type HistogramSnapshot struct {
	Buckets [len(latencyBuckets)]uint64
	OverMax uint64
	Count   uint64
	Mean    float64
}

func (h *histogram) snapshot() HistogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := HistogramSnapshot{Buckets: h.buckets, OverMax: h.overMax, Count: h.count}
	if h.count > 0 {
		s.Mean = h.sum / float64(h.count)
	}
	return s
}

// rateWindow tracks event timestamps within the last windowSeconds to
// derive an events-per-second rate.
type rateWindow struct {
	mu        sync.Mutex
	timestamps []time.Time
}

func (w *rateWindow) record(now time.Time) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timestamps = append(w.timestamps, now)
	cutoff := now.Add(-windowSeconds * time.Second)
	i := 0
	for i < len(w.timestamps) && w.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = w.timestamps[i:]
	}
	return float64(len(w.timestamps)) / float64(windowSeconds)
}

func (w *rateWindow) rate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return float64(len(w.timestamps)) / float64(windowSeconds)
}

// Stats is a snapshot of all pipeline metrics at a point in time.
type Stats struct {
	FramesAcquired   int64
	FramesProcessed  int64
	FramesDropped    int64
	BufferOverflows  int64
	DesyncEvents     int64
	RecoveryEvents   int64
	BufferUsagePct   float64
	AcquisitionRate  float64
	ProcessingRate   float64
	AcquisitionLatency HistogramSnapshot
	ProcessingLatency  HistogramSnapshot
}

// Metrics collects counters, rates, and latency histograms for one
// acquisition pipeline instance.
type Metrics struct {
	framesAcquired  ringbuf.PaddedInt64
	framesProcessed ringbuf.PaddedInt64
	framesDropped   ringbuf.PaddedInt64
	bufferOverflows ringbuf.PaddedInt64
	desyncEvents    ringbuf.PaddedInt64
	recoveryEvents  ringbuf.PaddedInt64

	bufferUsageMu  sync.Mutex
	bufferUsagePct float64

	acquisitionHistory rateWindow
	processingHistory  rateWindow

	acquisitionLatency histogram
	processingLatency  histogram
}

// New returns an empty Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// RecordAcquisition records one acquired frame and its latency in
// milliseconds, updating the acquisition rate window.
func (m *Metrics) RecordAcquisition(latencyMs float64) {
	m.framesAcquired.Add(1)
	m.acquisitionLatency.record(latencyMs)
	m.acquisitionHistory.record(time.Now())
}

// RecordProcessing records one processed frame and its latency in
// milliseconds, updating the processing rate window.
func (m *Metrics) RecordProcessing(latencyMs float64) {
	m.framesProcessed.Add(1)
	m.processingLatency.record(latencyMs)
	m.processingHistory.record(time.Now())
}

// RecordDroppedFrame increments the dropped-frame counter.
func (m *Metrics) RecordDroppedFrame() {
	m.framesDropped.Add(1)
}

// RecordBufferOverflow increments the buffer-overflow counter.
func (m *Metrics) RecordBufferOverflow() {
	m.bufferOverflows.Add(1)
}

// RecordDesync increments the desync-event counter.
func (m *Metrics) RecordDesync() {
	m.desyncEvents.Add(1)
}

// RecordRecovery increments the recovery-event counter.
func (m *Metrics) RecordRecovery() {
	m.recoveryEvents.Add(1)
}

// UpdateBufferUsage records the ring buffer's current occupancy as a
// percentage of capacity.
func (m *Metrics) UpdateBufferUsage(used, capacity int) {
	var pct float64
	if capacity > 0 {
		pct = (float64(used) / float64(capacity)) * 100.0
	}
	m.bufferUsageMu.Lock()
	m.bufferUsagePct = pct
	m.bufferUsageMu.Unlock()
}

// GetStats returns a consistent snapshot of all tracked metrics.
func (m *Metrics) GetStats() Stats {
	m.bufferUsageMu.Lock()
	usage := m.bufferUsagePct
	m.bufferUsageMu.Unlock()

	return Stats{
		FramesAcquired:     m.framesAcquired.Load(),
		FramesProcessed:    m.framesProcessed.Load(),
		FramesDropped:      m.framesDropped.Load(),
		BufferOverflows:    m.bufferOverflows.Load(),
		DesyncEvents:       m.desyncEvents.Load(),
		RecoveryEvents:     m.recoveryEvents.Load(),
		BufferUsagePct:     usage,
		AcquisitionRate:    m.acquisitionHistory.rate(),
		ProcessingRate:     m.processingHistory.rate(),
		AcquisitionLatency: m.acquisitionLatency.snapshot(),
		ProcessingLatency:  m.processingLatency.snapshot(),
	}
}
