//go:build !linux

// affinity_other.go: no-op RT elevation on platforms without the syscalls
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package scheduler

import "fmt"

func applyRtSettings(taskID string, cfg Config) {
	if len(cfg.CPUAffinity) > 0 {
		warnRt(fmt.Sprintf("task %s: CPU affinity not supported on this platform", taskID))
	}
	if cfg.LockMemory {
		warnRt(fmt.Sprintf("task %s: memory locking not supported on this platform", taskID))
	}
	if cfg.UseRtSched {
		warnRt(fmt.Sprintf("task %s: RT scheduling policy not supported on this platform", taskID))
	}
}
