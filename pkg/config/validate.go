package config

import "fmt"

// Validate checks configuration correctness. It performs declarative
// validation only and never mutates the configuration. Zero values are
// allowed here; Normalize fills in defaults afterwards.
func Validate(cfg *Config) error {
	if cfg.DurationSeconds < 0 {
		return fmt.Errorf("duration must be positive, got %d", cfg.DurationSeconds)
	}
	if cfg.FrequencySeconds < 0 {
		return fmt.Errorf("frequency must be positive, got %d", cfg.FrequencySeconds)
	}

	if cfg.Monitors.FtraceOptions.MaxTraceLines < 0 {
		return fmt.Errorf("max_trace_lines must not be negative, got %d", cfg.Monitors.FtraceOptions.MaxTraceLines)
	}
	if cfg.Monitors.IOUringOptions.MaxEvents < 0 {
		return fmt.Errorf("max_events must not be negative, got %d", cfg.Monitors.IOUringOptions.MaxEvents)
	}
	if cfg.Monitors.IOUringOptions.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", cfg.Monitors.IOUringOptions.TimeoutSeconds)
	}
	if cfg.Monitors.KallsymsOptions.MaxSymbols < 0 {
		return fmt.Errorf("max_symbols must not be negative, got %d", cfg.Monitors.KallsymsOptions.MaxSymbols)
	}

	return nil
}
