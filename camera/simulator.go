// simulator.go: deterministic camera simulator for tests and demos
//
// Synthesizes a checkerboard background with a solid rectangle in the
// middle, ticking at the configured frame rate in Continuous/Hardware mode
// or waiting on Trigger in Software mode.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package camera

import (
	"errors"
	"sync"
	"time"

	"github.com/agilira/argos/clock"
)

var (
	ErrNotInitialized  = errors.New("camera: not initialized")
	ErrAlreadyRunning  = errors.New("camera: acquisition already started")
	ErrNotRunning      = errors.New("camera: acquisition not started")
	ErrTriggerMode     = errors.New("camera: trigger() requires Software trigger mode")
	ErrUnknownParam    = errors.New("camera: unknown parameter")
	ErrAcquireTimeout  = errors.New("camera: acquire_frame timed out")
)

// Simulator is a deterministic Camera implementation that synthesizes a
// checkerboard test pattern with a solid block in the center.
type Simulator struct {
	mu          sync.Mutex
	id          string
	initialized bool
	running     bool
	cfg         Config
	frameID     uint64
	params      map[string]string
	triggerCh   chan struct{}
}

// NewSimulator returns a Simulator identified by id. Initialize must be
// called before use.
func NewSimulator(id string) *Simulator {
	return &Simulator{
		id:        id,
		params:    make(map[string]string),
		triggerCh: make(chan struct{}, 1),
	}
}

func (s *Simulator) Initialize(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Width == 0 {
		cfg.Width = 1280
	}
	if cfg.Height == 0 {
		cfg.Height = 1024
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30.0
	}
	if cfg.ID == "" {
		cfg.ID = s.id
	}
	s.cfg = cfg
	s.initialized = true
	return nil
}

func (s *Simulator) StartAcquisition() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	return nil
}

func (s *Simulator) StopAcquisition() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}
	s.running = false
	return nil
}

func (s *Simulator) AcquireFrame(maxWait time.Duration) (Frame, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return Frame{}, ErrNotRunning
	}
	cfg := s.cfg
	s.mu.Unlock()

	if cfg.TriggerMode == Software {
		select {
		case <-s.triggerCh:
		case <-time.After(maxWait):
			return Frame{}, ErrAcquireTimeout
		}
	} else {
		interval := time.Duration(float64(time.Second) / cfg.FrameRate)
		select {
		case <-time.After(interval):
		case <-time.After(maxWait):
			if interval > maxWait {
				return Frame{}, ErrAcquireTimeout
			}
		}
	}

	return s.generateFrame(cfg), nil
}

func (s *Simulator) Trigger() error {
	s.mu.Lock()
	mode := s.cfg.TriggerMode
	running := s.running
	s.mu.Unlock()
	if mode != Software {
		return ErrTriggerMode
	}
	if !running {
		return ErrNotRunning
	}
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
	return nil
}

func (s *Simulator) GetConfig() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Simulator) SetParameter(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[name] = value
	return nil
}

func (s *Simulator) GetParameter(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[name]
	if !ok {
		return "", ErrUnknownParam
	}
	return v, nil
}

func (s *Simulator) generateFrame(cfg Config) Frame {
	s.mu.Lock()
	s.frameID++
	id := s.frameID
	s.mu.Unlock()

	channels := cfg.PixelFormat.BytesPerPixel()
	size := int(cfg.Width) * int(cfg.Height) * channels
	data := make([]byte, size)

	const blockSize = 32
	for y := uint32(0); y < cfg.Height; y++ {
		for x := uint32(0); x < cfg.Width; x++ {
			blockX := x / blockSize
			blockY := y / blockSize
			white := (blockX+blockY)%2 == 0
			value := byte(50)
			if white {
				value = 200
			}
			idx := int(y*cfg.Width+x) * channels
			fillPixel(data, idx, channels, value)
		}
	}

	centerX, centerY := cfg.Width/2, cfg.Height/2
	blockW, blockH := cfg.Width/5, cfg.Height/2
	for y := centerY - blockH/2; y < centerY+blockH/2 && y < cfg.Height; y++ {
		for x := centerX - blockW/2; x < centerX+blockW/2 && x < cfg.Width; x++ {
			idx := int(y*cfg.Width+x) * channels
			fillPixel(data, idx, channels, 150)
		}
	}

	return Frame{
		Data:        data,
		Width:       cfg.Width,
		Height:      cfg.Height,
		PixelFormat: cfg.PixelFormat,
		Timestamp:   clock.Now(),
		FrameID:     id,
		Metadata:    map[string]string{"source": "simulator", "camera_id": cfg.ID},
	}
}

func fillPixel(data []byte, idx, channels int, value byte) {
	if idx+channels > len(data) {
		return
	}
	for c := 0; c < channels; c++ {
		data[idx+c] = value
	}
	if channels == 4 {
		data[idx+3] = 255 // alpha
	}
}
