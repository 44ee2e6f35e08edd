// camera.go: abstract camera capability consumed by the acquisition pipeline
//
// Only the capability boundary and a deterministic simulator live in this
// repository; vendor SDK bindings implement the same interface elsewhere.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package camera

import (
	"time"

	"github.com/agilira/argos/clock"
)

// PixelFormat tags the layout of a frame's byte payload.
type PixelFormat int

const (
	Mono8 PixelFormat = iota
	Mono16
	RGB8
	BGR8
	RGBA8
	BGRA8
	YUV422
	YUV422Packed
	BayerRG8
	BayerGB8
	BayerGR8
	BayerBG8
)

func (f PixelFormat) String() string {
	switch f {
	case Mono8:
		return "mono8"
	case Mono16:
		return "mono16"
	case RGB8:
		return "rgb8"
	case BGR8:
		return "bgr8"
	case RGBA8:
		return "rgba8"
	case BGRA8:
		return "bgra8"
	case YUV422:
		return "yuv422"
	case YUV422Packed:
		return "yuv422_packed"
	case BayerRG8:
		return "bayer_rg8"
	case BayerGB8:
		return "bayer_gb8"
	case BayerGR8:
		return "bayer_gr8"
	case BayerBG8:
		return "bayer_bg8"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns the channel count used to size a generated frame;
// it is not an exact on-wire byte width for sub-byte or packed formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case Mono8:
		return 1
	case Mono16:
		return 2
	case RGB8, BGR8:
		return 3
	case RGBA8, BGRA8:
		return 4
	default:
		return 1
	}
}

// TriggerMode selects how a camera's acquisition is driven.
type TriggerMode int

const (
	Continuous TriggerMode = iota
	Software
	Hardware
)

// Config describes a camera's acquisition parameters.
type Config struct {
	ID            string
	PixelFormat   PixelFormat
	Width         uint32
	Height        uint32
	FrameRate     float64
	ExposureUs    uint64
	GainDB        float64
	TriggerMode   TriggerMode
	VendorParams  map[string]string
	MaxWaitMs     uint64
}

// Frame is one acquired image plus the metadata the pipeline needs to
// publish it: raw bytes, geometry, pixel format, acquisition timestamp, a
// vendor-assigned frame id, and free-form metadata pairs.
type Frame struct {
	Data        []byte
	Width       uint32
	Height      uint32
	PixelFormat PixelFormat
	Timestamp   clock.Timestamp
	FrameID     uint64
	Metadata    map[string]string
}

// Camera is the capability the pipeline consumes; vendor SDK bindings
// implement it outside this module.
type Camera interface {
	Initialize(cfg Config) error
	StartAcquisition() error
	StopAcquisition() error
	// AcquireFrame blocks until a frame is available or maxWait elapses.
	AcquireFrame(maxWait time.Duration) (Frame, error)
	// Trigger fires a software trigger; only valid in Software mode.
	Trigger() error
	GetConfig() Config
	SetParameter(name, value string) error
	GetParameter(name string) (string, error)
}
