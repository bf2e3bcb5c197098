package config

// Built-in defaults applied by Normalize when the file leaves a field unset.
const (
	DefaultDurationSeconds  = 60
	DefaultFrequencySeconds = 10
	DefaultOutputDir        = "data/output"
)

// Normalize fills in defaults for unset fields. It may mutate the
// configuration and must be called only after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.DurationSeconds == 0 {
		cfg.DurationSeconds = DefaultDurationSeconds
	}
	if cfg.FrequencySeconds == 0 {
		cfg.FrequencySeconds = DefaultFrequencySeconds
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
}
