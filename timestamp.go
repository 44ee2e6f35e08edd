// timestamp.go: public alias for the pipeline's monotonic timestamp type
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package argos

import (
	"time"

	"github.com/agilira/argos/clock"
)

// Timestamp is the (seconds, nanoseconds, monotonic counter) instant used
// throughout the pipeline for acquisition and commit timing. This type
// alias exposes the clock package's implementation at the package root for
// configuration and call-site convenience.
type Timestamp = clock.Timestamp

// Now returns the current Timestamp.
func Now() Timestamp { return clock.Now() }

// FromTime converts a time.Time into a Timestamp.
func FromTime(t time.Time) Timestamp { return clock.FromTime(t) }
