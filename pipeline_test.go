package argos

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/agilira/argos/camera"
	argosync "github.com/agilira/argos/sync"
)

func smallCameraConfig(frameRate float64) camera.Config {
	return camera.Config{
		Width:       16,
		Height:      16,
		PixelFormat: camera.Mono8,
		FrameRate:   frameRate,
		TriggerMode: camera.Continuous,
	}
}

func TestPipelineFreerunSingleCameraCountsFrames(t *testing.T) {
	var processed atomic.Int64
	cfg := &Config{
		BufferCapacity:     16,
		MaxImageSize:       16 * 16,
		AcquisitionThreads: 1,
		ProcessingThreads:  1,
		CameraConfigs:      []camera.Config{smallCameraConfig(200)},
		Processors: []Processor{
			func(img Image) error {
				processed.Add(1)
				return nil
			},
		},
	}

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.State() != Ready {
		t.Fatalf("state after New = %v, want Ready", p.State())
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.State() != Running {
		t.Fatalf("state after Start = %v, want Running", p.State())
	}

	time.Sleep(1 * time.Second)

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.State() != Stopped {
		t.Fatalf("state after Stop = %v, want Stopped", p.State())
	}

	stats := p.Stats()
	if stats.FramesAcquired < 50 {
		t.Fatalf("frames_acquired = %d, want at least 50 in ~1s at 200fps simulated rate", stats.FramesAcquired)
	}
	if stats.FramesDropped != 0 {
		t.Fatalf("frames_dropped = %d, want 0 with an undersubscribed buffer", stats.FramesDropped)
	}
	if processed.Load() == 0 {
		t.Fatal("processor callback was never invoked")
	}
}

func TestPipelineDropOldestAccounting(t *testing.T) {
	cfg := &Config{
		BufferCapacity:     4,
		MaxImageSize:       16 * 16,
		AcquisitionThreads: 1,
		ProcessingThreads:  1,
		OverflowStrategy:   DropOldest,
		CameraConfigs:      []camera.Config{smallCameraConfig(2000)},
		Processors: []Processor{
			func(img Image) error {
				time.Sleep(20 * time.Millisecond) // slow consumer forces overflow
				return nil
			},
		},
	}

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	stats := p.Stats()
	if stats.FramesDropped == 0 {
		t.Fatal("expected frames_dropped > 0 with a fast producer and slow consumer")
	}
	if stats.FramesAcquired != stats.FramesProcessed+stats.FramesDropped+p.ring.Size() {
		t.Fatalf("lifetime invariant violated: acquired=%d processed=%d dropped=%d size=%d",
			stats.FramesAcquired, stats.FramesProcessed, stats.FramesDropped, p.ring.Size())
	}
}

func TestPipelineCallbackErrorDoesNotHaltProcessing(t *testing.T) {
	var tick atomic.Int64
	var processed atomic.Int64
	cfg := &Config{
		BufferCapacity:     16,
		MaxImageSize:       16 * 16,
		AcquisitionThreads: 1,
		ProcessingThreads:  1,
		CameraConfigs:      []camera.Config{smallCameraConfig(500)},
		Processors: []Processor{
			func(img Image) error {
				processed.Add(1)
				if tick.Add(1)%10 == 0 {
					return errInjected
				}
				return nil
			},
		},
	}

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(500 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if processed.Load() < 20 {
		t.Fatalf("processed = %d, want callback invoked repeatedly past failures", processed.Load())
	}
	if p.State() != Stopped {
		t.Fatalf("state = %v, want Stopped despite callback failures", p.State())
	}
}

func TestPipelinePauseResume(t *testing.T) {
	cfg := &Config{
		BufferCapacity:     8,
		MaxImageSize:       16 * 16,
		AcquisitionThreads: 1,
		ProcessingThreads:  1,
		CameraConfigs:      []camera.Config{smallCameraConfig(200)},
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if p.State() != Paused {
		t.Fatalf("state after Pause = %v, want Paused", p.State())
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start (resume): %v", err)
	}
	if p.State() != Running {
		t.Fatalf("state after resume = %v, want Running", p.State())
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPipelineRegisterProcessorRejectedWhileRunning(t *testing.T) {
	cfg := &Config{
		BufferCapacity:     4,
		MaxImageSize:       16 * 16,
		AcquisitionThreads: 1,
		ProcessingThreads:  1,
		CameraConfigs:      []camera.Config{smallCameraConfig(200)},
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	if err := p.RegisterProcessor(func(Image) error { return nil }); err == nil {
		t.Fatal("RegisterProcessor while Running should fail")
	}
}

func TestPipelineResetClearsLifetimeCounters(t *testing.T) {
	cfg := &Config{
		BufferCapacity:     8,
		MaxImageSize:       16 * 16,
		AcquisitionThreads: 1,
		ProcessingThreads:  1,
		CameraConfigs:      []camera.Config{smallCameraConfig(200)},
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	p.Reset()
	if p.ring.Produced() != 0 || p.ring.Consumed() != 0 || p.ring.Dropped() != 0 {
		t.Fatal("Reset did not clear ring buffer lifetime counters")
	}
}

func TestPipelineDesyncInjectionTriggersRecovery(t *testing.T) {
	var stall atomic.Bool
	stall.Store(true)

	cfg := &Config{
		BufferCapacity:     32,
		MaxImageSize:       16 * 16,
		AcquisitionThreads: 1,
		ProcessingThreads:  1,
		OverflowStrategy:   DropOldest,
		EnableAutoRecovery: true,
		DesyncThreshold:    50 * time.Millisecond,
		MetricsIntervalMs:  50,
		CameraConfigs:      []camera.Config{smallCameraConfig(200)},
		Processors: []Processor{
			func(img Image) error {
				for stall.Load() {
					time.Sleep(5 * time.Millisecond)
				}
				return nil
			},
		},
	}

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	stall.Store(false)
	time.Sleep(100 * time.Millisecond)

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	stats := p.Stats()
	if stats.DesyncEvents < 1 {
		t.Fatalf("desync_events = %d, want >= 1", stats.DesyncEvents)
	}
	if stats.RecoveryEvents < 1 {
		t.Fatalf("recovery_events = %d, want >= 1", stats.RecoveryEvents)
	}
}

func TestPipelineStopThenStartResumesAcquisition(t *testing.T) {
	var processed atomic.Int64
	cfg := &Config{
		BufferCapacity:     16,
		MaxImageSize:       16 * 16,
		AcquisitionThreads: 1,
		ProcessingThreads:  1,
		CameraConfigs:      []camera.Config{smallCameraConfig(200)},
		Processors: []Processor{
			func(img Image) error {
				processed.Add(1)
				return nil
			},
		},
	}

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.State() != Stopped {
		t.Fatalf("state after Stop = %v, want Stopped", p.State())
	}

	firstRunCount := processed.Load()
	if firstRunCount == 0 {
		t.Fatal("no frames processed before Stop")
	}

	if err := p.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if p.State() != Running {
		t.Fatalf("state after second Start = %v, want Running", p.State())
	}

	time.Sleep(200 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if processed.Load() <= firstRunCount {
		t.Fatalf("processed count did not advance after restart: before=%d after=%d", firstRunCount, processed.Load())
	}
}

func TestPipelineSoftwareSyncProducesFrames(t *testing.T) {
	var processed atomic.Int64
	camCfg := smallCameraConfig(0)
	cfg := &Config{
		BufferCapacity:     16,
		MaxImageSize:       16 * 16,
		AcquisitionThreads: 2,
		ProcessingThreads:  1,
		CameraConfigs:      []camera.Config{camCfg, camCfg},
		Sync: argosync.Config{
			Mode:              argosync.Software,
			TriggerIntervalUs: 10000,
		},
		Processors: []Processor{
			func(img Image) error {
				processed.Add(1)
				return nil
			},
		},
	}

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(500 * time.Millisecond)

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	stats := p.Stats()
	if stats.FramesAcquired == 0 {
		t.Fatal("no frames acquired under software sync; cameras never triggered")
	}
	if processed.Load() == 0 {
		t.Fatal("no frames processed under software sync")
	}
}

var errInjected = &injectedErr{}

type injectedErr struct{}

func (*injectedErr) Error() string { return "injected processor failure" }
