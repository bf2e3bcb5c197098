// Package config loads the optional YAML configuration file. Flags given on
// the command line override anything set here. All time windows are integer
// seconds, matching the command-line flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML document.
type Config struct {
	// DurationSeconds is the total sampling window.
	DurationSeconds int `yaml:"duration"`
	// FrequencySeconds is the interval between snapshots.
	FrequencySeconds int    `yaml:"frequency"`
	OutputDir        string `yaml:"output_dir"`

	Monitors MonitorsConfig `yaml:"monitors"`
}

// MonitorsConfig selects monitor families and their per-family options.
type MonitorsConfig struct {
	Process    bool `yaml:"process"`
	Networking bool `yaml:"networking"`
	EBPF       bool `yaml:"ebpf"`
	Ftrace     bool `yaml:"ftrace"`
	IOUring    bool `yaml:"io_uring"`
	Modules    bool `yaml:"modules"`
	Kallsyms   bool `yaml:"kallsyms"`
	FileSystem bool `yaml:"file_system"`

	EBPFOptions     EBPFConfig     `yaml:"ebpf_options"`
	FtraceOptions   FtraceConfig   `yaml:"ftrace_options"`
	IOUringOptions  IOUringConfig  `yaml:"io_uring_options"`
	KallsymsOptions KallsymsConfig `yaml:"kallsyms_options"`
	FSOptions       FSConfig       `yaml:"file_system_options"`
}

type EBPFConfig struct {
	// BCCEnabled forces the kernel-iteration fallback instead of bpftool.
	BCCEnabled bool `yaml:"bcc_enabled"`
}

type FtraceConfig struct {
	MaxTraceLines int `yaml:"max_trace_lines"`
}

type IOUringConfig struct {
	MaxEvents      int `yaml:"max_events"`
	TimeoutSeconds int `yaml:"timeout"`
}

type KallsymsConfig struct {
	NameFilter   string `yaml:"filter"`
	ModuleFilter string `yaml:"module_filter"`
	MaxSymbols   int    `yaml:"max_symbols"`
}

type FSConfig struct {
	KnownDirectoriesFile string `yaml:"known_directories"`
}

// Load reads and parses the YAML file at path, then validates and
// normalizes the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	Normalize(&cfg)

	return &cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}
