// timestamp.go: monotonically ordered instants for frame acquisition
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package clock

import (
	"fmt"
	"sync/atomic"
	"time"
)

// globalSequence is a process-wide monotonic tiebreaker. Two Timestamps
// taken back-to-back on different goroutines still compare strictly
// because the counter, not the wall clock, breaks ties.
var globalSequence int64

// lastWallNanos is the largest wall-clock reading Now has handed out.
var lastWallNanos int64

// Timestamp is a (seconds, nanoseconds, monotonic counter) triple. Ordering
// is lexicographic over the three fields. Now never hands out a wall-clock
// reading smaller than one it returned before, so a wall-clock correction
// that moves seconds/nanoseconds backwards can never make Now() return a
// Timestamp that compares less than one taken earlier in program order.
// FromTime and Add use the given time as is.
type Timestamp struct {
	seconds  int64
	nanos    int32
	sequence int64
}

// Now returns the current Timestamp.
func Now() Timestamp {
	n := time.Now().UnixNano()
	for {
		prev := atomic.LoadInt64(&lastWallNanos)
		if n <= prev {
			n = prev
			break
		}
		if atomic.CompareAndSwapInt64(&lastWallNanos, prev, n) {
			break
		}
	}
	return Timestamp{
		seconds:  n / int64(time.Second),
		nanos:    int32(n % int64(time.Second)),
		sequence: atomic.AddInt64(&globalSequence, 1),
	}
}

// FromTime converts a time.Time into a Timestamp, assigning it the next
// monotonic sequence number.
func FromTime(t time.Time) Timestamp {
	return Timestamp{
		seconds:  t.Unix(),
		nanos:    int32(t.Nanosecond()),
		sequence: atomic.AddInt64(&globalSequence, 1),
	}
}

// Seconds returns the whole seconds since the Unix epoch.
func (ts Timestamp) Seconds() int64 { return ts.seconds }

// Nanoseconds returns the subsecond nanosecond component.
func (ts Timestamp) Nanoseconds() int32 { return ts.nanos }

// Sequence returns the monotonic tiebreaker assigned at construction.
func (ts Timestamp) Sequence() int64 { return ts.sequence }

// Time converts the Timestamp back to a time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.seconds, int64(ts.nanos))
}

// Before reports whether ts happened strictly before other, using the
// monotonic sequence as the final tiebreaker.
func (ts Timestamp) Before(other Timestamp) bool {
	if ts.seconds != other.seconds {
		return ts.seconds < other.seconds
	}
	if ts.nanos != other.nanos {
		return ts.nanos < other.nanos
	}
	return ts.sequence < other.sequence
}

// Compare returns -1, 0, or 1 as ts is before, equal to, or after other.
func (ts Timestamp) Compare(other Timestamp) int {
	switch {
	case ts.Before(other):
		return -1
	case other.Before(ts):
		return 1
	default:
		return 0
	}
}

// Sub returns the duration from other to ts, positive if ts is later.
func (ts Timestamp) Sub(other Timestamp) time.Duration {
	return ts.Time().Sub(other.Time())
}

// Add returns the Timestamp offset by d, with a fresh monotonic sequence.
func (ts Timestamp) Add(d time.Duration) Timestamp {
	return FromTime(ts.Time().Add(d))
}

// DiffNanos returns ts - other in nanoseconds.
func (ts Timestamp) DiffNanos(other Timestamp) int64 {
	return ts.Sub(other).Nanoseconds()
}

// DiffMicros returns ts - other in microseconds.
func (ts Timestamp) DiffMicros(other Timestamp) int64 {
	return ts.Sub(other).Microseconds()
}

// DiffMillis returns ts - other in milliseconds.
func (ts Timestamp) DiffMillis(other Timestamp) int64 {
	return ts.Sub(other).Milliseconds()
}

// String renders ts as ISO-8601 with nanosecond precision, UTC.
func (ts Timestamp) String() string {
	return ts.Time().UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

// Format is an alias for String kept for readability at call sites that
// explicitly want ISO-8601 rendering rather than the fmt.Stringer contract.
func (ts Timestamp) Format() string {
	return ts.String()
}

// IsZero reports whether ts is the zero Timestamp (never produced by Now
// or FromTime, useful as a "not yet set" sentinel in stats).
func (ts Timestamp) IsZero() bool {
	return ts == Timestamp{}
}

var _ fmt.Stringer = Timestamp{}
