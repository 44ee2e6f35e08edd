// logger.go: diagnostics seam for RT elevation, camera, and desync events
//
// Mirrors errors.go's SetErrorHandler/GetErrorHandler seam shape, but for
// informational (not necessarily error-carrying) diagnostics: RT priority
// elevation warnings, camera degradation notices, desync/recovery events.
// Defaults to log/slog, leaving structured logging to the embedder rather
// than bundling a formatter of its own.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package argos

import (
	"log/slog"

	"github.com/agilira/argos/scheduler"
)

// Logger is the diagnostics sink for non-fatal pipeline events.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

var currentLogger Logger = slogLogger{l: slog.Default()}

// SetLogger overrides the diagnostics sink used by the pipeline and by the
// scheduler's RT elevation warnings.
func SetLogger(logger Logger) {
	if logger == nil {
		logger = slogLogger{l: slog.Default()}
	}
	currentLogger = logger
	scheduler.SetWarnFunc(func(message string) {
		currentLogger.Warn(message)
	})
}

// GetLogger returns the active diagnostics sink.
func GetLogger() Logger {
	return currentLogger
}

func init() {
	scheduler.SetWarnFunc(func(message string) {
		currentLogger.Warn(message)
	})
}
