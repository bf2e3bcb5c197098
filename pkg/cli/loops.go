package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clueless-admin/cladm/pkg/collector"
	"github.com/clueless-admin/cladm/pkg/collector/ebpf"
	"github.com/clueless-admin/cladm/pkg/collector/fsys"
	"github.com/clueless-admin/cladm/pkg/collector/ftrace"
	"github.com/clueless-admin/cladm/pkg/collector/iouring"
	"github.com/clueless-admin/cladm/pkg/collector/kallsyms"
	"github.com/clueless-admin/cladm/pkg/collector/kmod"
	"github.com/clueless-admin/cladm/pkg/collector/network"
	"github.com/clueless-admin/cladm/pkg/collector/process"
	"github.com/clueless-admin/cladm/pkg/config"
	"github.com/clueless-admin/cladm/pkg/serializer"
	"github.com/clueless-admin/cladm/pkg/snapshotter"
)

// buildLoops instantiates one monitor loop per enabled family.
func buildLoops(cfg *config.Config) []*snapshotter.Loop {
	m := cfg.Monitors

	newLoop := func(family string, c collector.Collector) *snapshotter.Loop {
		return &snapshotter.Loop{
			Family:    family,
			Duration:  time.Duration(cfg.DurationSeconds) * time.Second,
			Frequency: time.Duration(cfg.FrequencySeconds) * time.Second,
			OutputDir: cfg.OutputDir,
			Collector: c,
		}
	}

	var loops []*snapshotter.Loop
	if m.Process {
		loops = append(loops, newLoop("process", process.New()))
	}
	if m.Networking {
		loops = append(loops, newLoop("net", network.New()))
	}
	if m.EBPF {
		loops = append(loops, newLoop("ebpf", ebpf.New(m.EBPFOptions.BCCEnabled)))
	}
	if m.Ftrace {
		loops = append(loops, newLoop("ftrace", ftrace.New(m.FtraceOptions.MaxTraceLines)))
	}
	if m.IOUring {
		loops = append(loops, newLoop("io_uring", iouring.New(m.IOUringOptions.MaxEvents, time.Duration(m.IOUringOptions.TimeoutSeconds)*time.Second)))
	}
	if m.Modules {
		loops = append(loops, newLoop("modules", kmod.New()))
	}
	if m.Kallsyms {
		loops = append(loops, newLoop("kallsyms", kallsyms.New(kallsyms.Options{
			NameFilter:   m.KallsymsOptions.NameFilter,
			ModuleFilter: m.KallsymsOptions.ModuleFilter,
			MaxSymbols:   m.KallsymsOptions.MaxSymbols,
		})))
	}
	if m.FileSystem {
		loops = append(loops, newLoop("file_system", fsys.New(m.FSOptions.KnownDirectoriesFile)))
	}

	return loops
}

// runLoops launches every loop concurrently and waits for all of them. One
// loop failing never interrupts its siblings; each is fully independent. A
// rejected-parameters failure is additionally emitted as an envelope on
// stdout so callers scripting cladm get a structured report.
func runLoops(ctx context.Context, loops []*snapshotter.Loop) error {
	var g errgroup.Group
	for _, loop := range loops {
		g.Go(func() error {
			err := loop.Run(ctx)

			var invalid *snapshotter.InvalidArgumentsError
			if errors.As(err, &invalid) {
				slog.Error("monitor rejected", slog.String("family", loop.Family), slog.String("reason", invalid.Reason))
				if werr := serializer.WriteStdout(invalid.Envelope()); werr != nil {
					slog.Warn("failed to emit rejection envelope", slog.String("error", werr.Error()))
				}
			}
			return err
		})
	}
	return g.Wait()
}
