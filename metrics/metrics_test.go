package metrics

import "testing"

func TestRecordAcquisitionIncrementsCounterAndRate(t *testing.T) {
	m := New()
	m.RecordAcquisition(1.5)
	m.RecordAcquisition(2.5)
	stats := m.GetStats()
	if stats.FramesAcquired != 2 {
		t.Fatalf("FramesAcquired = %d, want 2", stats.FramesAcquired)
	}
	if stats.AcquisitionRate <= 0 {
		t.Fatalf("AcquisitionRate = %f, want > 0", stats.AcquisitionRate)
	}
	if stats.AcquisitionLatency.Count != 2 {
		t.Fatalf("AcquisitionLatency.Count = %d, want 2", stats.AcquisitionLatency.Count)
	}
}

func TestRecordProcessingIncrementsCounterAndRate(t *testing.T) {
	m := New()
	m.RecordProcessing(10)
	stats := m.GetStats()
	if stats.FramesProcessed != 1 {
		t.Fatalf("FramesProcessed = %d, want 1", stats.FramesProcessed)
	}
	if stats.ProcessingRate <= 0 {
		t.Fatalf("ProcessingRate = %f, want > 0", stats.ProcessingRate)
	}
	if stats.ProcessingLatency.Count != 1 {
		t.Fatalf("ProcessingLatency.Count = %d, want 1", stats.ProcessingLatency.Count)
	}
}

func TestEventCountersIndependentlyTracked(t *testing.T) {
	m := New()
	m.RecordDroppedFrame()
	m.RecordDroppedFrame()
	m.RecordBufferOverflow()
	m.RecordDesync()
	m.RecordRecovery()

	stats := m.GetStats()
	if stats.FramesDropped != 2 {
		t.Fatalf("FramesDropped = %d, want 2", stats.FramesDropped)
	}
	if stats.BufferOverflows != 1 {
		t.Fatalf("BufferOverflows = %d, want 1", stats.BufferOverflows)
	}
	if stats.DesyncEvents != 1 {
		t.Fatalf("DesyncEvents = %d, want 1", stats.DesyncEvents)
	}
	if stats.RecoveryEvents != 1 {
		t.Fatalf("RecoveryEvents = %d, want 1", stats.RecoveryEvents)
	}
}

func TestUpdateBufferUsageComputesPercentage(t *testing.T) {
	m := New()
	m.UpdateBufferUsage(25, 100)
	stats := m.GetStats()
	if stats.BufferUsagePct != 25.0 {
		t.Fatalf("BufferUsagePct = %f, want 25.0", stats.BufferUsagePct)
	}
}

func TestUpdateBufferUsageZeroCapacityIsZero(t *testing.T) {
	m := New()
	m.UpdateBufferUsage(5, 0)
	stats := m.GetStats()
	if stats.BufferUsagePct != 0 {
		t.Fatalf("BufferUsagePct = %f, want 0", stats.BufferUsagePct)
	}
}

func TestHistogramBucketsAssignSmallestFittingBucket(t *testing.T) {
	h := &histogram{}
	h.record(0.05)
	h.record(1.0)
	h.record(200.0)
	snap := h.snapshot()
	if snap.Count != 3 {
		t.Fatalf("Count = %d, want 3", snap.Count)
	}
	if snap.Buckets[0] != 1 {
		t.Fatalf("Buckets[0] (<=0.1ms) = %d, want 1", snap.Buckets[0])
	}
	// 1.0ms falls in the bucket boundary <= 1
	if snap.Buckets[2] != 1 {
		t.Fatalf("Buckets[2] (<=1ms) = %d, want 1", snap.Buckets[2])
	}
	if snap.OverMax != 1 {
		t.Fatalf("OverMax = %d, want 1 (200ms exceeds all buckets)", snap.OverMax)
	}
}
