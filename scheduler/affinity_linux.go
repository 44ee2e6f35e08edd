//go:build linux

// affinity_linux.go: CPU affinity, memory locking, and RT scheduling policy
//
// Every syscall here is best-effort: a failure is logged through warnRt and
// the task keeps running at default scheduling rather than aborting.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// schedFIFO is POSIX SCHED_FIFO (1). x/sys/unix doesn't export a scheduling
// policy wrapper, so sched_setscheduler(2) is invoked directly via its
// syscall number, which the package does export.
const schedFIFO = 1

// schedParam mirrors struct sched_param from <sched.h>: a single int field
// on every Linux architecture.
type schedParam struct {
	priority int32
}

func applyRtSettings(taskID string, cfg Config) {
	if len(cfg.CPUAffinity) > 0 {
		var set unix.CPUSet
		for _, cpu := range cfg.CPUAffinity {
			if cpu < 0 {
				continue
			}
			set.Set(cpu)
		}
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			warnRt(fmt.Sprintf("task %s: failed to set CPU affinity %v: %v", taskID, cfg.CPUAffinity, err))
		}
	}

	if cfg.LockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			warnRt(fmt.Sprintf("task %s: failed to lock memory: %v", taskID, err))
		}
	}

	if cfg.UseRtSched {
		prio := rtPriorityLevel(cfg.Priority)
		param := schedParam{priority: int32(prio)}
		_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, schedFIFO, uintptr(unsafe.Pointer(&param)))
		if errno != 0 {
			warnRt(fmt.Sprintf("task %s: failed to set SCHED_FIFO priority %d: %v", taskID, prio, errno))
		}
	}
}

func rtPriorityLevel(p Priority) int {
	switch p {
	case Low:
		return 1
	case Normal:
		return 50
	case High:
		return 80
	case Critical:
		return 99
	default:
		return 50
	}
}
