// warn.go: non-fatal RT elevation warning seam
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package scheduler

import "sync/atomic"

// WarnFunc receives a non-fatal warning about a failed RT elevation
// (affinity, mlock, or scheduling policy). Defaults to a no-op; the argos
// package wires this to its own diagnostics logger so these warnings share
// a single seam with the rest of the pipeline.
type WarnFunc func(message string)

var warnFn atomic.Value

func init() {
	warnFn.Store(WarnFunc(func(string) {}))
}

// SetWarnFunc overrides how RT elevation warnings are reported.
func SetWarnFunc(fn WarnFunc) {
	if fn == nil {
		fn = func(string) {}
	}
	warnFn.Store(fn)
}

func warnRt(message string) {
	warnFn.Load().(WarnFunc)(message)
}
