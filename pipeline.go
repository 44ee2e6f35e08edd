// pipeline.go: acquisition pipeline orchestrator
//
// Wires cameras -> RingBuffer -> registered processor callbacks via the
// Scheduler, applying the configured overflow policy and driving recovery.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package argos

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argos/camera"
	"github.com/agilira/argos/internal/ringbuf"
	"github.com/agilira/argos/metrics"
	"github.com/agilira/argos/scheduler"
	argosync "github.com/agilira/argos/sync"
)

// State is the pipeline's lifecycle state.
type State int

const (
	Uninitialized State = iota
	Ready
	Running
	Paused
	Stopped
	PipelineError
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case PipelineError:
		return "error"
	default:
		return "unknown"
	}
}

// Image is a processor-facing view over a committed slot. Pixels borrows
// the slot's backing array for the duration of the registered-callback
// loop; a processor that needs the bytes to outlive commit_read must call
// Retain to force a copy.
type Image struct {
	Pixels      []byte
	Width       uint32
	Height      uint32
	PixelFormat camera.PixelFormat
	Sequence    uint64
	Timestamp   Timestamp
	Metadata    map[string]string

	retained bool
}

// Retain returns an Image whose Pixels slice is an owned copy, safe to use
// past the processing task's commit_read. Calling Retain twice is cheap:
// the second call returns the already-owned image without copying again.
func (img Image) Retain() Image {
	if img.retained {
		return img
	}
	cp := make([]byte, len(img.Pixels))
	copy(cp, img.Pixels)
	img.Pixels = cp
	img.retained = true
	return img
}

// Processor inspects an Image and reports success or failure. A returned
// error is logged and counted but never aborts the pipeline.
type Processor func(Image) error

// Status is a point-in-time snapshot of pipeline health, updated by the
// Monitor and consumable by external telemetry.
type Status struct {
	State            State
	Degraded         bool
	OverflowPressure bool
	Desynchronized   bool
	Stats            metrics.Stats
}

// Pipeline orchestrates cameras, the ring buffer, the scheduler, and the
// synchronizer behind a single lifecycle state machine.
type Pipeline struct {
	cfg *Config

	mu    sync.Mutex
	state State
	err   error

	ring  *ringbuf.RingBuffer
	sched *scheduler.Scheduler
	sync  *argosync.Synchronizer
	mx    *metrics.Metrics

	cameras []camera.Camera

	procMu     sync.RWMutex
	processors []Processor

	globalSeq atomic.Uint64

	lastAcquisitionNanos atomic.Int64
	lastProcessingNanos  atomic.Int64

	degraded         atomic.Bool
	overflowPressure atomic.Bool
	desynchronized   atomic.Bool

	acqTasks  []*scheduler.Task
	procTasks []*scheduler.Task
	monTask   *scheduler.Task
}

// New constructs a Pipeline from cfg, validating it synchronously and
// then running initialize: building the ring buffer, cameras, scheduler
// tasks, and the monitor. The returned Pipeline is in the Ready state.
func New(cfg *Config) (*Pipeline, error) {
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, state: Uninitialized}
	if err := p.initialize(); err != nil {
		p.mu.Lock()
		p.state = PipelineError
		p.err = err
		p.mu.Unlock()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) initialize() error {
	ring, err := ringbuf.New(p.cfg.BufferCapacity, p.cfg.MaxImageSize, p.cfg.OverflowStrategy.toRingbuf())
	if err != nil {
		return wrapError(err, ErrCodeInit, "failed to construct ring buffer")
	}
	p.ring = ring
	p.mx = metrics.New()
	p.sched = scheduler.New()
	p.sync = argosync.New(p.cfg.Sync)

	if err := p.configureCameras(); err != nil {
		return err
	}
	p.sync.OnTrigger(p.fanOutTrigger)

	p.procMu.Lock()
	p.processors = append(p.processors, p.cfg.Processors...)
	p.procMu.Unlock()

	p.spawnAcquisitionTasks()
	p.spawnProcessingTasks()
	p.spawnMonitorTask()

	p.mu.Lock()
	p.state = Ready
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) configureCameras() error {
	if len(p.cfg.Cameras) > 0 {
		p.cameras = p.cfg.Cameras
		return nil
	}

	factory := p.cfg.CameraFactory
	if factory == nil {
		factory = func(id string, cfg camera.Config) (camera.Camera, error) {
			sim := camera.NewSimulator(id)
			if err := sim.Initialize(cfg); err != nil {
				return nil, err
			}
			return sim, nil
		}
	}

	n := p.cfg.AcquisitionThreads
	cams := make([]camera.Camera, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("cam-%d", i)
		var camCfg camera.Config
		if i < len(p.cfg.CameraConfigs) {
			camCfg = p.cfg.CameraConfigs[i]
		}
		camCfg.ID = id
		camCfg.MaxWaitMs = p.cfg.MaxWaitTimeMs
		camCfg.TriggerMode = triggerModeFor(p.cfg.Sync.Mode)
		cam, err := factory(id, camCfg)
		if err != nil {
			return wrapError(err, ErrCodeInit, fmt.Sprintf("failed to initialize camera %s", id))
		}
		cams = append(cams, cam)
	}
	p.cameras = cams
	return nil
}

func (p *Pipeline) spawnAcquisitionTasks() {
	for i, cam := range p.cameras {
		cfg := scheduler.Config{
			Priority:    p.cfg.AcquisitionPriority,
			PeriodMs:    0, // driven by the camera's blocking read
			CPUAffinity: affinityFor(p.cfg.AcquisitionCPUAffinity, i),
			LockMemory:  true,
			UseRtSched:  true,
		}
		cam := cam
		id := fmt.Sprintf("acquisition-%d", i)
		task := p.sched.Spawn(id, scheduler.Acquisition, cfg, func(ctl *scheduler.Control) error {
			return p.acquisitionTick(cam)
		})
		p.acqTasks = append(p.acqTasks, task)
	}
}

func (p *Pipeline) spawnProcessingTasks() {
	for i := 0; i < p.cfg.ProcessingThreads; i++ {
		cfg := scheduler.Config{
			Priority:    p.cfg.ProcessingPriority,
			PeriodMs:    0, // aperiodic: reacts to buffer availability
			CPUAffinity: affinityFor(p.cfg.ProcessingCPUAffinity, i),
		}
		id := fmt.Sprintf("processing-%d", i)
		task := p.sched.Spawn(id, scheduler.Processing, cfg, func(ctl *scheduler.Control) error {
			return p.processingTick()
		})
		p.procTasks = append(p.procTasks, task)
	}
}

func (p *Pipeline) spawnMonitorTask() {
	cfg := scheduler.Config{
		Priority: scheduler.Normal,
		PeriodMs: p.cfg.MetricsIntervalMs,
	}
	p.monTask = p.sched.Spawn("monitor-0", scheduler.Monitoring, cfg, func(ctl *scheduler.Control) error {
		p.monitorTick()
		return nil
	})
}

func affinityFor(set []int, i int) []int {
	if i < len(set) {
		return []int{set[i]}
	}
	return nil
}

// triggerModeFor maps the synchronizer's mode onto the matching camera
// trigger mode, so cameras built by configureCameras wait for the same
// kind of event the Synchronizer drives.
func triggerModeFor(mode argosync.Mode) camera.TriggerMode {
	switch mode {
	case argosync.Software:
		return camera.Software
	case argosync.Hardware:
		return camera.Hardware
	default:
		return camera.Continuous
	}
}

// fanOutTrigger is the Synchronizer's OnTrigger callback: it forwards one
// trigger event to every camera's software-trigger endpoint. It only runs
// for Software and Hardware sync modes (Synchronizer.Trigger rejects
// Freerun before invoking the callback); a camera that doesn't accept
// software triggers (Hardware mode, driven by its own external line)
// simply rejects the call, which is expected.
func (p *Pipeline) fanOutTrigger() {
	for _, cam := range p.cameras {
		_ = cam.Trigger()
	}
}

// acquisitionTick acquires a frame, reserves a slot, copies, stamps,
// commits, and updates metrics.
func (p *Pipeline) acquisitionTick(cam camera.Camera) error {
	frame, err := cam.AcquireFrame(time.Duration(p.cfg.MaxWaitTimeMs) * time.Millisecond)
	if err != nil {
		p.mx.RecordDroppedFrame()
		handleError(wrapError(err, ErrCodeAcquisition, "camera acquire_frame failed"))
		return nil
	}

	index, slot, err := p.ring.Reserve()
	if err != nil {
		p.mx.RecordDroppedFrame()
		p.mx.RecordBufferOverflow()
		return nil
	}

	size := len(frame.Data)
	if size > p.ring.MaxSlotSize() {
		handleError(wrapError(ringbuf.ErrOversizedFrame, ErrCodeBuffer,
			fmt.Sprintf("frame exceeds max_image_size, truncating (%d > %d)", size, p.ring.MaxSlotSize())))
		size = p.ring.MaxSlotSize()
	}
	n := copy(slot.Data, frame.Data[:size])
	slot.Size = n
	slot.Width = frame.Width
	slot.Height = frame.Height
	slot.Format = uint8(frame.PixelFormat)
	slot.Timestamp = frame.Timestamp

	seq := p.globalSeq.Add(1)
	p.ring.CommitWrite(index, seq)

	now := Now()
	p.lastAcquisitionNanos.Store(now.Time().UnixNano())
	latencyMs := float64(now.DiffMicros(frame.Timestamp)) / 1000.0
	if latencyMs < 0 {
		latencyMs = 0
	}
	p.mx.RecordAcquisition(latencyMs)
	p.mx.UpdateBufferUsage(int(p.ring.Size()), int(p.ring.Capacity()))
	return nil
}

// processingTick claims the next committed slot, runs it through every
// registered processor, and commits the read back.
func (p *Pipeline) processingTick() error {
	idx, slot, err := p.ring.Read()
	if err != nil {
		time.Sleep(time.Millisecond)
		p.maybeRecoverFromDesync()
		return nil
	}

	p.lastProcessingNanos.Store(Now().Time().UnixNano())

	img := Image{
		Pixels:      slot.Data[:slot.Size],
		Width:       slot.Width,
		Height:      slot.Height,
		PixelFormat: camera.PixelFormat(slot.Format),
		Sequence:    slot.Sequence,
		Timestamp:   slot.Timestamp,
	}

	p.procMu.RLock()
	procs := p.processors
	p.procMu.RUnlock()
	for _, proc := range procs {
		if err := proc(img); err != nil {
			handleError(wrapError(err, ErrCodeProcessing, "processor callback failed"))
		}
	}

	p.ring.CommitRead(idx)

	now := Now()
	latencyMs := float64(now.DiffMicros(slot.Timestamp)) / 1000.0
	if latencyMs < 0 {
		latencyMs = 0
	}
	p.mx.RecordProcessing(latencyMs)
	p.mx.UpdateBufferUsage(int(p.ring.Size()), int(p.ring.Capacity()))
	return nil
}

// maybeRecoverFromDesync is the processing task's own inline recovery
// check, run whenever Read finds the buffer empty: if auto-recovery is
// enabled and the spread between the last acquisition and the last
// processing exceeds the desync threshold, reset the ring buffer and
// count both a desync and a recovery event.
func (p *Pipeline) maybeRecoverFromDesync() {
	if !p.cfg.EnableAutoRecovery {
		return
	}
	lastAcq := p.lastAcquisitionNanos.Load()
	lastProc := p.lastProcessingNanos.Load()
	if lastAcq == 0 || lastProc == 0 {
		return
	}
	spread := time.Duration(lastAcq - lastProc)
	if spread < 0 {
		spread = -spread
	}
	if spread <= p.cfg.DesyncThreshold {
		return
	}
	p.ring.Reset()
	p.mx.RecordDesync()
	p.mx.RecordRecovery()
	p.desynchronized.Store(true)
	GetLogger().Warn("desync detected, ring buffer reset", "spread_ms", spread.Milliseconds())
}

// RegisterProcessor appends proc to the callback registry. Registration is
// append-only and only accepted while the pipeline is not Running; the
// read-side (processingTick) takes procMu.RLock so an in-flight
// registration never races a read.
func (p *Pipeline) RegisterProcessor(proc Processor) error {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	if state == Running {
		return newError(ErrCodeInit, "cannot register a processor while the pipeline is Running")
	}
	p.procMu.Lock()
	p.processors = append(p.processors, proc)
	p.procMu.Unlock()
	return nil
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastError returns the error that moved the pipeline to PipelineError, if any.
func (p *Pipeline) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// respawnTasks rebuilds the Scheduler and every acquisition/processing/
// monitor task. Stop joins every task through to Finished, and a Finished
// task's goroutine has already returned for good, so a later Start can't
// resume it through the control mailbox; it needs a fresh Task on a fresh
// Scheduler instead.
func (p *Pipeline) respawnTasks() {
	p.sched = scheduler.New()
	p.acqTasks = nil
	p.procTasks = nil
	p.monTask = nil
	p.spawnAcquisitionTasks()
	p.spawnProcessingTasks()
	p.spawnMonitorTask()
}

// Start transitions Ready -> Running (or Paused -> Running, or Stopped ->
// Running): enables cameras and broadcasts a Scheduler start. A task that
// reached Finished during a prior Stop never runs again, so resuming from
// Stopped rebuilds the scheduler and every task from scratch rather than
// starting dead ones.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	switch p.state {
	case Ready, Stopped:
		fromStopped := p.state == Stopped
		p.mu.Unlock()
		if fromStopped {
			p.respawnTasks()
		}
		for _, cam := range p.cameras {
			if err := cam.StartAcquisition(); err != nil {
				handleError(wrapError(err, ErrCodeAcquisition, "camera start_acquisition failed"))
			}
		}
		p.sync.Start()
		p.sched.StartAll()
		p.mu.Lock()
		p.state = Running
		p.mu.Unlock()
		return nil
	case Paused:
		p.state = Running
		p.mu.Unlock()
		for _, t := range p.acqTasks {
			t.Control().Resume()
		}
		for _, t := range p.procTasks {
			t.Control().Resume()
		}
		if p.monTask != nil {
			p.monTask.Control().Resume()
		}
		return nil
	case Running:
		p.mu.Unlock()
		return nil
	default:
		s := p.state
		p.mu.Unlock()
		return newErrorf(ErrCodeInit, "cannot start pipeline in state %s", s)
	}
}

// Pause transitions Running -> Paused without disabling cameras or losing
// configuration, so a later Start resumes in place.
func (p *Pipeline) Pause() error {
	p.mu.Lock()
	if p.state != Running {
		s := p.state
		p.mu.Unlock()
		if s == Paused {
			return nil
		}
		return newErrorf(ErrCodeInit, "cannot pause pipeline in state %s", s)
	}
	p.state = Paused
	p.mu.Unlock()

	for _, t := range p.acqTasks {
		t.Control().Pause()
	}
	for _, t := range p.procTasks {
		t.Control().Pause()
	}
	if p.monTask != nil {
		p.monTask.Control().Pause()
	}
	return nil
}

// Stop disables cameras, broadcasts a Scheduler stop, and joins up to
// StopTimeout. Exceeding the timeout escalates the pipeline to
// PipelineError.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.state == Stopped || p.state == Uninitialized {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	for _, cam := range p.cameras {
		if err := cam.StopAcquisition(); err != nil {
			handleError(wrapError(err, ErrCodeAcquisition, "camera stop_acquisition failed"))
		}
	}
	p.sync.Stop()
	p.sched.StopAll()

	ok := p.sched.JoinAll(p.cfg.StopTimeout)
	p.mu.Lock()
	defer p.mu.Unlock()
	if !ok {
		p.state = PipelineError
		p.err = newErrorf(ErrCodeTimeout, "scheduler join_all exceeded %s, tasks left running", p.cfg.StopTimeout)
		return p.err
	}
	p.state = Stopped
	return nil
}

// Reset restores the pipeline's ring buffer, per-task stats, and status
// flags to a fresh state while preserving configuration.
func (p *Pipeline) Reset() {
	p.ring.Reset()
	p.ring.ResetCounters()
	for _, t := range p.sched.Tasks() {
		t.ResetStats()
	}
	p.degraded.Store(false)
	p.overflowPressure.Store(false)
	p.desynchronized.Store(false)
}

// StatusSnapshot returns a point-in-time Status for external telemetry.
func (p *Pipeline) StatusSnapshot() Status {
	return Status{
		State:            p.State(),
		Degraded:         p.degraded.Load(),
		OverflowPressure: p.overflowPressure.Load(),
		Desynchronized:   p.desynchronized.Load(),
		Stats:            p.mx.GetStats(),
	}
}

// Stats returns the current metrics snapshot.
func (p *Pipeline) Stats() metrics.Stats {
	return p.mx.GetStats()
}

// Synchronizer returns the pipeline's multi-camera trigger synchronizer,
// for callers driving Software-mode triggers externally.
func (p *Pipeline) Synchronizer() *argosync.Synchronizer {
	return p.sync
}

// Tasks returns a snapshot of every scheduled task (acquisition,
// processing, and the monitor), for inspecting per-task stats.
func (p *Pipeline) Tasks() []*scheduler.Task {
	return p.sched.Tasks()
}
