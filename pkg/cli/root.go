// Package cli implements the cladm command-line interface.
//
// cladm runs a set of independent monitor loops, each periodically reading
// one kernel interface and writing timestamped JSON envelope files:
//
//	cladm --process --networking --duration 60 --frequency 10 --output-dir data/output
//
// Every family is enabled by its own flag; loops run concurrently and share
// nothing but the output directory convention.
package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/clueless-admin/cladm/pkg/config"
	"github.com/clueless-admin/cladm/pkg/logging"
)

// version is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/clueless-admin/cladm/pkg/cli.version=1.0.0'"
var version = "dev"

// Run parses arguments and executes the root command.
func Run(ctx context.Context, args []string) error {
	return rootCmd().Run(ctx, args)
}

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:                  "cladm",
		Version:               version,
		EnableShellCompletion: true,
		Usage:                 "Periodic Linux host-state monitors for intrusion forensics",
		Description: `Runs the selected monitor families concurrently for --duration seconds,
snapshotting every --frequency seconds. Each family writes one run directory
<family>_monitor_<timestamp> under --output-dir, containing one JSON envelope
file per snapshot kind per iteration.

# Examples

Snapshot processes and sockets for a minute:
  cladm --process --networking --duration 60 --frequency 10

Watch eBPF programs and kernel symbols with an abridged symbol list:
  cladm --ebpf --kallsyms --kallsyms-filter '^nft_' --max-symbols 500

Load defaults from a config file, overriding the window on the command line:
  cladm --config cladm.yaml --duration 30`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file providing defaults for all other flags",
			},
			&cli.IntFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "total sampling window in seconds",
			},
			&cli.IntFlag{
				Name:    "frequency",
				Aliases: []string{"f"},
				Usage:   "seconds between snapshots",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "base directory for run directories",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "output logs in JSON format",
			},

			// Family enable flags.
			&cli.BoolFlag{Name: "process", Usage: "monitor processes and threads"},
			&cli.BoolFlag{Name: "networking", Usage: "monitor sockets, interfaces, ARP and iptables"},
			&cli.BoolFlag{Name: "ebpf", Usage: "monitor loaded eBPF programs"},
			&cli.BoolFlag{Name: "ftrace", Usage: "monitor ftrace configuration"},
			&cli.BoolFlag{Name: "io-uring", Usage: "monitor io_uring activity via ftrace"},
			&cli.BoolFlag{Name: "modules", Usage: "monitor loaded kernel modules"},
			&cli.BoolFlag{Name: "kallsyms", Usage: "monitor the kernel symbol table"},
			&cli.BoolFlag{Name: "file-system", Usage: "monitor file descriptors, directories and filesystems"},

			// Monitor-specific options.
			&cli.BoolFlag{
				Name:  "bcc-enabled",
				Usage: "force kernel-iteration eBPF enumeration instead of bpftool",
			},
			&cli.IntFlag{
				Name:  "max-trace-lines",
				Usage: "trace buffer lines included in each ftrace snapshot",
			},
			&cli.IntFlag{
				Name:  "max-events",
				Usage: "io_uring events collected per snapshot",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "io_uring trace-pipe inactivity timeout in seconds",
			},
			&cli.StringFlag{
				Name:  "known-directories",
				Usage: "file with newline-separated directories to watch",
			},
			&cli.StringFlag{
				Name:  "kallsyms-filter",
				Usage: "regexp applied to kernel symbol names",
			},
			&cli.StringFlag{
				Name:  "kallsyms-module-filter",
				Usage: "regexp applied to kernel symbol module names",
			},
			&cli.IntFlag{
				Name:  "max-symbols",
				Usage: "symbols materialized per kallsyms snapshot",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logging.Setup(logging.Options{
				Debug: cmd.Bool("debug"),
				JSON:  cmd.Bool("log-json"),
			})

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			loops := buildLoops(cfg)
			if len(loops) == 0 {
				return fmt.Errorf("no monitors enabled; pass at least one family flag (e.g. --process) or enable one in the config file")
			}

			return runLoops(ctx, loops)
		},
	}
}

// resolveConfig merges the optional config file with command-line flags.
// Flags that were set explicitly always win.
func resolveConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.IsSet("duration") {
		cfg.DurationSeconds = cmd.Int("duration")
	}
	if cmd.IsSet("frequency") {
		cfg.FrequencySeconds = cmd.Int("frequency")
	}
	if cmd.IsSet("output-dir") {
		cfg.OutputDir = cmd.String("output-dir")
	}

	m := &cfg.Monitors
	if cmd.IsSet("process") {
		m.Process = cmd.Bool("process")
	}
	if cmd.IsSet("networking") {
		m.Networking = cmd.Bool("networking")
	}
	if cmd.IsSet("ebpf") {
		m.EBPF = cmd.Bool("ebpf")
	}
	if cmd.IsSet("ftrace") {
		m.Ftrace = cmd.Bool("ftrace")
	}
	if cmd.IsSet("io-uring") {
		m.IOUring = cmd.Bool("io-uring")
	}
	if cmd.IsSet("modules") {
		m.Modules = cmd.Bool("modules")
	}
	if cmd.IsSet("kallsyms") {
		m.Kallsyms = cmd.Bool("kallsyms")
	}
	if cmd.IsSet("file-system") {
		m.FileSystem = cmd.Bool("file-system")
	}

	if cmd.IsSet("bcc-enabled") {
		m.EBPFOptions.BCCEnabled = cmd.Bool("bcc-enabled")
	}
	if cmd.IsSet("max-trace-lines") {
		m.FtraceOptions.MaxTraceLines = cmd.Int("max-trace-lines")
	}
	if cmd.IsSet("max-events") {
		m.IOUringOptions.MaxEvents = cmd.Int("max-events")
	}
	if cmd.IsSet("timeout") {
		m.IOUringOptions.TimeoutSeconds = cmd.Int("timeout")
	}
	if cmd.IsSet("known-directories") {
		m.FSOptions.KnownDirectoriesFile = cmd.String("known-directories")
	}
	if cmd.IsSet("kallsyms-filter") {
		m.KallsymsOptions.NameFilter = cmd.String("kallsyms-filter")
	}
	if cmd.IsSet("kallsyms-module-filter") {
		m.KallsymsOptions.ModuleFilter = cmd.String("kallsyms-module-filter")
	}
	if cmd.IsSet("max-symbols") {
		m.KallsymsOptions.MaxSymbols = cmd.Int("max-symbols")
	}

	return cfg, nil
}
