// config_loader.go: configuration loading and hot reload
//
// JSON file loading (no environment-variable loading) plus a
// DynamicConfigWatcher built on github.com/agilira/argus. Only a
// deliberately small subset of fields is watched (metrics_interval_ms,
// enable_auto_recovery, the two priority fields) — buffer_capacity,
// max_image_size, and thread counts require a fresh pipeline from New and
// are intentionally not part of the reload callback's contract.
//
// Copyright (c) 2026 Argos Authors
// SPDX-License-Identifier: MPL-2.0

package argos

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
	"github.com/agilira/argos/scheduler"
)

func validateFilePath(filename string) error {
	if filename == "" {
		return fmt.Errorf("empty file path")
	}
	cleanPath := filepath.Clean(filename)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", filename)
	}
	return nil
}

// LoadConfigFromJSON loads a pipeline Config from a JSON file, applying
// defaults to any field the file omits.
func LoadConfigFromJSON(filename string) (*Config, error) {
	if err := validateFilePath(filename); err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	data, err := os.ReadFile(filename) // #nosec G304 -- path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw struct {
		BufferCapacity         int      `json:"buffer_capacity"`
		MaxImageSize           int      `json:"max_image_size"`
		AcquisitionThreads     int      `json:"acquisition_threads"`
		ProcessingThreads      int      `json:"processing_threads"`
		AcquisitionPriority    string   `json:"acquisition_priority"`
		ProcessingPriority     string   `json:"processing_priority"`
		AcquisitionCPUAffinity []int    `json:"acquisition_cpu_affinity"`
		ProcessingCPUAffinity  []int    `json:"processing_cpu_affinity"`
		MetricsIntervalMs      uint64   `json:"metrics_interval_ms"`
		EnableAutoRecovery     bool     `json:"enable_auto_recovery"`
		MaxWaitTimeMs          uint64   `json:"max_wait_time_ms"`
		OverflowStrategy       string   `json:"overflow_strategy"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	cfg := &Config{
		BufferCapacity:         raw.BufferCapacity,
		MaxImageSize:           raw.MaxImageSize,
		AcquisitionThreads:     raw.AcquisitionThreads,
		ProcessingThreads:      raw.ProcessingThreads,
		AcquisitionPriority:    parsePriority(raw.AcquisitionPriority),
		ProcessingPriority:     parsePriority(raw.ProcessingPriority),
		AcquisitionCPUAffinity: raw.AcquisitionCPUAffinity,
		ProcessingCPUAffinity:  raw.ProcessingCPUAffinity,
		MetricsIntervalMs:      raw.MetricsIntervalMs,
		EnableAutoRecovery:     raw.EnableAutoRecovery,
		MaxWaitTimeMs:          raw.MaxWaitTimeMs,
		OverflowStrategy:       parseOverflowStrategy(raw.OverflowStrategy),
	}
	return cfg.ApplyDefaults(), nil
}

func parsePriority(s string) scheduler.Priority {
	switch strings.ToLower(s) {
	case "low":
		return scheduler.Low
	case "high":
		return scheduler.High
	case "critical":
		return scheduler.Critical
	default:
		return scheduler.Normal
	}
}

func parseOverflowStrategy(s string) OverflowStrategy {
	switch strings.ToLower(s) {
	case "drop_oldest", "dropoldest":
		return DropOldest
	case "drop_newest", "dropnewest":
		return DropNewest
	case "resize":
		return Resize
	default:
		return Block
	}
}

// ReloadableFields is the subset of Config that may change without a
// pipeline restart: applied by DynamicConfigWatcher on every config change.
type ReloadableFields struct {
	MetricsIntervalMs   uint64
	EnableAutoRecovery  bool
	AcquisitionPriority scheduler.Priority
	ProcessingPriority  scheduler.Priority
}

// ReloadFunc is invoked with the reloadable subset of a freshly parsed
// configuration file.
type ReloadFunc func(ReloadableFields)

// DynamicConfigWatcher watches a JSON config file via argus and applies
// the reloadable subset of its contents through a ReloadFunc.
type DynamicConfigWatcher struct {
	configPath string
	apply      ReloadFunc
	watcher    *argus.Watcher
	enabled    int32
	mu         sync.Mutex
}

// NewDynamicConfigWatcher returns a watcher that calls apply with the
// reloadable fields of configPath every time the file changes.
func NewDynamicConfigWatcher(configPath string, apply ReloadFunc) (*DynamicConfigWatcher, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file does not exist: %w", err)
	}
	if apply == nil {
		return nil, fmt.Errorf("apply callback must not be nil")
	}

	cfg := argus.Config{
		PollInterval:         2 * time.Second,
		OptimizationStrategy: argus.OptimizationAuto,
		Audit: argus.AuditConfig{
			Enabled:       true,
			OutputFile:    "argos-config-audit.jsonl",
			MinLevel:      argus.AuditInfo,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
		},
		ErrorHandler: func(err error, path string) {
			handleError(newErrorf(ErrCodeConfig, "config watcher error for %s: %v", path, err))
		},
	}

	return &DynamicConfigWatcher{
		configPath: configPath,
		apply:      apply,
		watcher:    argus.New(*cfg.WithDefaults()),
	}, nil
}

// Start begins watching the configuration file for changes, applying the
// reloadable fields immediately and on every subsequent change.
func (w *DynamicConfigWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if atomic.LoadInt32(&w.enabled) != 0 {
		return fmt.Errorf("watcher is already started")
	}

	if initial, err := LoadConfigFromJSON(w.configPath); err == nil {
		w.apply(reloadableOf(initial))
	}

	if err := w.watcher.Watch(w.configPath, func(event argus.ChangeEvent) {
		newCfg, err := LoadConfigFromJSON(event.Path)
		if err != nil {
			handleError(newErrorf(ErrCodeConfig, "failed to reload config from %s: %v", event.Path, err))
			return
		}
		w.apply(reloadableOf(newCfg))
	}); err != nil {
		return fmt.Errorf("failed to setup file watcher: %w", err)
	}

	if err := w.watcher.Start(); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	atomic.StoreInt32(&w.enabled, 1)
	return nil
}

// Stop stops watching the configuration file.
func (w *DynamicConfigWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if atomic.LoadInt32(&w.enabled) == 0 {
		return fmt.Errorf("watcher is not started")
	}
	if err := w.watcher.Stop(); err != nil {
		return fmt.Errorf("failed to stop file watcher: %w", err)
	}
	atomic.StoreInt32(&w.enabled, 0)
	return nil
}

// IsRunning reports whether the watcher is currently active.
func (w *DynamicConfigWatcher) IsRunning() bool {
	return atomic.LoadInt32(&w.enabled) != 0
}

func reloadableOf(c *Config) ReloadableFields {
	return ReloadableFields{
		MetricsIntervalMs:   c.MetricsIntervalMs,
		EnableAutoRecovery:  c.EnableAutoRecovery,
		AcquisitionPriority: c.AcquisitionPriority,
		ProcessingPriority:  c.ProcessingPriority,
	}
}
