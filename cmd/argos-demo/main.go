// main.go: demonstrates a freerun acquisition pipeline with two simulated
// cameras and a single counting processor.
//
// To run: go run ./cmd/argos-demo
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/agilira/argos"
)

func main() {
	var counted atomic.Int64

	cfg := &argos.Config{
		BufferCapacity:     64,
		MaxImageSize:       4 * 1024 * 1024,
		AcquisitionThreads: 2,
		ProcessingThreads:  2,
		EnableAutoRecovery: true,
		OverflowStrategy:   argos.DropOldest,
		Processors: []argos.Processor{
			func(img argos.Image) error {
				counted.Add(1)
				return nil
			},
		},
	}

	pipeline, err := argos.New(cfg)
	if err != nil {
		panic(err)
	}

	if err := pipeline.Start(); err != nil {
		panic(err)
	}

	time.Sleep(2 * time.Second)

	if err := pipeline.Stop(); err != nil {
		panic(err)
	}

	stats := pipeline.Stats()
	fmt.Printf("acquired=%d processed=%d dropped=%d overflows=%d counted=%d\n",
		stats.FramesAcquired, stats.FramesProcessed, stats.FramesDropped,
		stats.BufferOverflows, counted.Load())
}
