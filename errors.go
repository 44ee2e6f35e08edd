// errors.go: error kind taxonomy for the acquisition pipeline
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package argos

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/agilira/go-errors"
)

// Error kinds per the pipeline's error taxonomy. These are not Go types,
// they are ErrorCode tags attached to a single *errors.Error carrier so
// callers can branch on errors.HasCode rather than type-switch.
const (
	// ErrCodeInit marks pre-Running setup failures (invalid config, camera init).
	ErrCodeInit errors.ErrorCode = "ARGOS_INIT"
	// ErrCodeConfig marks invalid or mutually inconsistent configuration.
	ErrCodeConfig errors.ErrorCode = "ARGOS_CONFIG"
	// ErrCodeAcquisition marks camera-side acquisition failures.
	ErrCodeAcquisition errors.ErrorCode = "ARGOS_ACQUISITION"
	// ErrCodeBuffer marks ring buffer overflow/empty conditions.
	ErrCodeBuffer errors.ErrorCode = "ARGOS_BUFFER"
	// ErrCodeSync marks scheduler control delivery failures.
	ErrCodeSync errors.ErrorCode = "ARGOS_SYNC"
	// ErrCodeTimeout marks a wait that exceeded its cap.
	ErrCodeTimeout errors.ErrorCode = "ARGOS_TIMEOUT"
	// ErrCodeProcessing marks processor callback failures.
	ErrCodeProcessing errors.ErrorCode = "ARGOS_PROCESSING"
	// ErrCodeRt marks OS-level priority/affinity/mlock refusals.
	ErrCodeRt errors.ErrorCode = "ARGOS_RT"
)

// ErrorHandler receives errors that are logged but do not abort the caller
// (RT elevation warnings, degraded-camera notices, dropped processing
// callback errors).
type ErrorHandler func(err *errors.Error)

var defaultErrorHandler ErrorHandler = func(err *errors.Error) {
	fmt.Fprintf(os.Stderr, "[ARGOS] %s: %s\n", err.Code, err.Message)
	if err.Cause != nil {
		fmt.Fprintf(os.Stderr, "[ARGOS] caused by: %v\n", err.Cause)
	}
}

var currentErrorHandler = defaultErrorHandler

// SetErrorHandler overrides how non-fatal pipeline errors are reported.
func SetErrorHandler(handler ErrorHandler) {
	if handler == nil {
		currentErrorHandler = defaultErrorHandler
		return
	}
	currentErrorHandler = handler
}

// GetErrorHandler returns the active error handler.
func GetErrorHandler() ErrorHandler {
	return currentErrorHandler
}

func handleError(err *errors.Error) {
	if err == nil {
		return
	}
	if err.Context == nil {
		err.Context = make(map[string]interface{})
	}
	err.Context["goroutines"] = runtime.NumGoroutine()
	currentErrorHandler(err)
}

// newError creates a pipeline error of the given kind with standard context.
func newError(code errors.ErrorCode, message string) *errors.Error {
	return errors.New(code, message).
		WithSeverity("error").
		WithContext("component", "argos").
		WithContext("timestamp", time.Now().UTC())
}

// newErrorf is newError with fmt.Sprintf-style formatting.
func newErrorf(code errors.ErrorCode, format string, args ...interface{}) *errors.Error {
	return newError(code, fmt.Sprintf(format, args...))
}

// wrapError wraps an existing error with a pipeline error kind.
func wrapError(cause error, code errors.ErrorCode, message string) *errors.Error {
	return errors.Wrap(cause, code, message).
		WithSeverity("error").
		WithContext("component", "argos").
		WithContext("timestamp", time.Now().UTC())
}

// IsKind reports whether err carries the given error kind code.
func IsKind(err error, code errors.ErrorCode) bool {
	return errors.HasCode(err, code)
}

// ErrorCode extracts the error kind code from err, or "" if err is not a
// pipeline error.
func ErrorCode(err error) errors.ErrorCode {
	if e, ok := err.(*errors.Error); ok {
		return e.ErrorCode()
	}
	return ""
}
