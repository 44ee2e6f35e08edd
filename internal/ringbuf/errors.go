// errors.go: sentinel errors for the lock-free image ring buffer
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package ringbuf

import "errors"

var (
	// ErrInvalidCapacity is returned when the requested capacity is not
	// a positive, reasonable slot count.
	ErrInvalidCapacity = errors.New("ringbuf: capacity must be greater than zero")

	// ErrInvalidSlotSize is returned when max slot size is non-positive.
	ErrInvalidSlotSize = errors.New("ringbuf: slot size must be greater than zero")

	// ErrFull is returned by Reserve under DropNewest and Block policies
	// when the buffer has no free slot.
	ErrFull = errors.New("ringbuf: buffer full")

	// ErrEmpty is returned by Read when no committed slot is available.
	ErrEmpty = errors.New("ringbuf: buffer empty")

	// ErrOversizedFrame is returned by a writer that attempts to copy more
	// bytes into a slot than its preallocated capacity.
	ErrOversizedFrame = errors.New("ringbuf: frame exceeds slot capacity")
)
