// Package snapshotter runs monitor families on a fixed schedule and persists
// one envelope file per snapshot kind per tick.
package snapshotter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clueless-admin/cladm/pkg/collector"
	"github.com/clueless-admin/cladm/pkg/response"
	"github.com/clueless-admin/cladm/pkg/serializer"
)

// runTimestampLayout names run directories and iteration files,
// e.g. process_monitor_20250910_094213.
const runTimestampLayout = "20060102_150405"

// Loop periodically invokes every snapshot kind of one monitor family and
// writes each result to its own file under a per-run directory. Loops share
// nothing but the output directory convention and may run concurrently.
type Loop struct {
	// Family names the monitor family; the run directory is named
	// <Family>_monitor_<timestamp>.
	Family string

	// Duration is the total sampling window. Must be positive.
	Duration time.Duration

	// Frequency is the tick interval. Must be positive.
	Frequency time.Duration

	// OutputDir is the base directory for run directories.
	OutputDir string

	// Collector provides the snapshot kinds to run each tick.
	Collector collector.Collector

	// now and sleep are swapped out in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// Iterations returns the number of scheduled ticks: ceil(Duration/Frequency).
// A frequency larger than the duration still yields one tick.
func (l *Loop) Iterations() int {
	n := int(l.Duration / l.Frequency)
	if l.Duration%l.Frequency != 0 {
		n++
	}
	return n
}

// validate fails fast on bad parameters before any directory is created.
func (l *Loop) validate() error {
	if l.Duration <= 0 {
		return &InvalidArgumentsError{Family: l.Family, Reason: fmt.Sprintf("invalid duration: %s (must be > 0)", l.Duration)}
	}
	if l.Frequency <= 0 {
		return &InvalidArgumentsError{Family: l.Family, Reason: fmt.Sprintf("invalid frequency: %s (must be > 0)", l.Frequency)}
	}
	if l.OutputDir == "" {
		return &InvalidArgumentsError{Family: l.Family, Reason: "output directory must not be empty"}
	}
	if l.Collector == nil || len(l.Collector.Kinds()) == 0 {
		return &InvalidArgumentsError{Family: l.Family, Reason: "no snapshot kinds configured"}
	}
	return nil
}

// InvalidArgumentsError reports loop parameters rejected before the run
// directory was created.
type InvalidArgumentsError struct {
	Family string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("%s monitor: %s", e.Family, e.Reason)
}

// Envelope renders the rejection in the standard failure schema.
func (e *InvalidArgumentsError) Envelope() *response.Envelope {
	return response.Failure(response.TaskTypeState, fmt.Sprintf("%s_MONITOR_CALL", strings.ToUpper(e.Family)), response.CodeInvalidArguments, e.Reason)
}

// Run executes the loop until the iteration budget is exhausted or the
// elapsed time exceeds Duration. A snapshot failure never aborts the loop; a
// file-write failure is logged and skipped. The only error returns are
// invalid arguments (before any I/O) and context cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.validate(); err != nil {
		return err
	}

	if l.now == nil {
		l.now = time.Now
	}
	if l.sleep == nil {
		l.sleep = sleepCtx
	}

	start := l.now()
	rootTimestamp := start.UTC().Format(runTimestampLayout)
	runDir := filepath.Join(l.OutputDir, fmt.Sprintf("%s_monitor_%s", l.Family, rootTimestamp))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory %s: %w", runDir, err)
	}

	manifest := newManifest(l.Family, rootTimestamp, l.Duration, l.Frequency)
	if err := manifest.write(runDir); err != nil {
		// Manifest is advisory; the run itself proceeds.
		slog.Warn("failed to write run manifest", slog.String("family", l.Family), slog.String("error", err.Error()))
	}

	kinds := l.Collector.Kinds()
	iterations := l.Iterations()

	slog.Info("starting monitor loop",
		slog.String("family", l.Family),
		slog.String("run_id", manifest.RunID),
		slog.Int("iterations", iterations),
		slog.String("run_dir", runDir),
	)

	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		elapsed := l.now().Sub(start)
		if elapsed > l.Duration {
			// A slow previous iteration consumed the remaining window.
			slog.Debug("duration exhausted before tick", slog.String("family", l.Family), slog.Int("iteration", i))
			break
		}

		for _, kind := range kinds {
			env := l.takeSnapshot(ctx, kind)

			filename := fmt.Sprintf("%s_%s_%d.json", kind.Name, rootTimestamp, i)
			path := filepath.Join(runDir, filename)
			if err := serializer.WriteJSONFile(path, env); err != nil {
				writeFailureTotal.WithLabelValues(l.Family).Inc()
				slog.Error("failed to persist snapshot",
					slog.String("family", l.Family),
					slog.String("kind", kind.Name),
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				continue
			}

			iterationTotal.WithLabelValues(l.Family, string(env.Status)).Inc()
		}

		if i == iterations-1 {
			break
		}

		elapsed = l.now().Sub(start)
		toNext := l.Frequency - elapsed%l.Frequency
		if remaining := l.Duration - elapsed; toNext > remaining {
			// Never let the final sleep overrun the total duration.
			toNext = remaining
		}
		if toNext > 0 {
			l.sleep(ctx, toNext)
		}
	}

	slog.Info("monitor loop finished", slog.String("family", l.Family), slog.String("run_id", manifest.RunID))
	return nil
}

// takeSnapshot invokes one snapshot func and contains any panic as an
// EXECUTION_FAILURE envelope so a bad tick never kills the loop.
func (l *Loop) takeSnapshot(ctx context.Context, kind collector.Kind) (env *response.Envelope) {
	start := l.now()
	defer func() {
		snapshotDuration.WithLabelValues(l.Family, kind.Name).Observe(l.now().Sub(start).Seconds())
		if r := recover(); r != nil {
			slog.Error("snapshot panicked",
				slog.String("family", l.Family),
				slog.String("kind", kind.Name),
				slog.Any("panic", r),
			)
			env = response.Failure(response.TaskTypeState, strings.ToUpper(kind.Name), response.CodeExecutionFailure, fmt.Sprintf("snapshot %s panicked: %v", kind.Name, r))
		}
	}()

	return kind.Func(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
