// config.go: pipeline configuration surface
//
// This file owns the Config struct and its defaults; config_loader.go owns
// reading it from a JSON file and hot-reloading it (there is no
// environment-variable loader).
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package argos

import (
	"time"

	"github.com/agilira/argos/camera"
	"github.com/agilira/argos/internal/ringbuf"
	"github.com/agilira/argos/scheduler"
	"github.com/agilira/argos/sync"
)

// OverflowStrategy names the ring buffer's behavior on a full reservation.
// Resize is a recognized value that is always rejected at Configure time:
// a placeholder for a future elastic buffer, not dead configuration.
type OverflowStrategy int

const (
	Block OverflowStrategy = iota
	DropOldest
	DropNewest
	Resize
)

func (o OverflowStrategy) String() string {
	switch o {
	case Block:
		return "block"
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	case Resize:
		return "resize"
	default:
		return "unknown"
	}
}

func (o OverflowStrategy) toRingbuf() ringbuf.OverflowPolicy {
	switch o {
	case DropOldest:
		return ringbuf.DropOldest
	case DropNewest:
		return ringbuf.DropNewest
	default:
		return ringbuf.Block
	}
}

// maxAcquisitionThreads and maxProcessingThreads bound acquisition/processing
// thread counts to sane platform limits.
const (
	maxAcquisitionThreads = 8
	maxProcessingThreads  = 16
)

// Config is the full configuration surface for an AcquisitionPipeline.
type Config struct {
	BufferCapacity int
	MaxImageSize   int

	AcquisitionThreads int
	ProcessingThreads  int

	AcquisitionPriority scheduler.Priority
	ProcessingPriority  scheduler.Priority

	AcquisitionCPUAffinity []int
	ProcessingCPUAffinity  []int

	MetricsIntervalMs  uint64
	EnableAutoRecovery bool
	MaxWaitTimeMs      uint64

	OverflowStrategy OverflowStrategy

	// Cameras are the concrete capability handles the pipeline acquires
	// from, one acquisition task per entry. If nil, initialize builds
	// AcquisitionThreads simulators via CameraFactory (or camera.NewSimulator
	// if CameraFactory is nil).
	Cameras       []camera.Camera
	CameraConfigs []camera.Config
	CameraFactory func(id string, cfg camera.Config) (camera.Camera, error)

	// Processors registered at construction time; processors registered
	// later via Pipeline.RegisterProcessor run after them.
	Processors []Processor

	// Sync configures the multi-camera trigger synchronizer. The zero
	// value is Freerun, matching sync.Mode's zero value.
	Sync sync.Config

	// StopTimeout bounds how long Stop waits for tasks to join before
	// moving the pipeline to PipelineError. Tasks still running at that
	// point are not terminated.
	StopTimeout time.Duration

	// BufferUsageThreshold is the Monitor's overflow-pressure trigger, a
	// fraction of capacity in (0, 1].
	BufferUsageThreshold float64

	// DesyncThreshold bounds the spread between last-acquisition and
	// last-processing instants before the Monitor (and the processing
	// task itself) call it a desync.
	DesyncThreshold time.Duration

	// MinAcquisitionRateFraction is the Monitor's liveness floor: a
	// fraction of TargetAcquisitionRate below which a camera is reported
	// degraded.
	MinAcquisitionRateFraction float64
	TargetAcquisitionRate      float64
}

// ApplyDefaults fills zero-valued fields with sane defaults.
func (c *Config) ApplyDefaults() *Config {
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = 64
	}
	if c.MaxImageSize <= 0 {
		c.MaxImageSize = 8 * 1024 * 1024
	}
	if c.AcquisitionThreads <= 0 {
		c.AcquisitionThreads = 1
	}
	if c.ProcessingThreads <= 0 {
		c.ProcessingThreads = 1
	}
	if c.AcquisitionPriority == 0 && c.ProcessingPriority == 0 {
		c.AcquisitionPriority = scheduler.High
		c.ProcessingPriority = scheduler.Normal
	}
	if c.MetricsIntervalMs == 0 {
		c.MetricsIntervalMs = 1000
	}
	if c.MaxWaitTimeMs == 0 {
		c.MaxWaitTimeMs = 1000
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 5 * time.Second
	}
	if c.BufferUsageThreshold == 0 {
		c.BufferUsageThreshold = 0.9
	}
	if c.DesyncThreshold == 0 {
		c.DesyncThreshold = time.Second
	}
	if c.MinAcquisitionRateFraction == 0 {
		c.MinAcquisitionRateFraction = 0.5
	}
	return c
}

// Validate checks the configuration for values that must be rejected
// synchronously at configure time, returning a *errors.Error tagged
// ErrCodeConfig.
func (c *Config) Validate() error {
	if c.BufferCapacity < 1 {
		return newError(ErrCodeConfig, "buffer_capacity must be >= 1")
	}
	if c.MaxImageSize < 1 {
		return newError(ErrCodeConfig, "max_image_size must be >= 1")
	}
	if c.AcquisitionThreads < 1 || c.AcquisitionThreads > maxAcquisitionThreads {
		return newErrorf(ErrCodeConfig, "acquisition_threads must be in [1, %d]", maxAcquisitionThreads)
	}
	if c.ProcessingThreads < 1 || c.ProcessingThreads > maxProcessingThreads {
		return newErrorf(ErrCodeConfig, "processing_threads must be in [1, %d]", maxProcessingThreads)
	}
	if c.OverflowStrategy == Resize {
		return newError(ErrCodeConfig, "overflow_strategy Resize is not supported")
	}
	return nil
}
