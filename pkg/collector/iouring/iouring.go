// Package iouring detects io_uring activity through the kernel function
// tracer. io_uring lets a process perform I/O with almost no visible
// syscalls, which makes trace-level evidence of io_uring submission paths a
// useful liveness signal when auditing for syscall-evading implants.
package iouring

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clueless-admin/cladm/pkg/collector"
	"github.com/clueless-admin/cladm/pkg/response"
	"github.com/clueless-admin/cladm/pkg/tracefs"
)

const subtypeEvents = "IO_URING_EVENTS"

const (
	// DefaultMaxEvents caps events collected per snapshot.
	DefaultMaxEvents = 100
	// DefaultIdleTimeout ends a snapshot after this long without a new
	// event.
	DefaultIdleTimeout = 2 * time.Second
	// filterPrefix selects the kernel functions traced for the liveness
	// check.
	filterPrefix = "io_uring"
)

// Collector drives the function tracer to observe io_uring activity. An
// empty TracingDir is resolved via tracefs.Find at snapshot time.
type Collector struct {
	TracingDir  string
	MaxEvents   int
	IdleTimeout time.Duration
}

// New returns a collector with the given event cap and inactivity timeout;
// non-positive values fall back to the defaults.
func New(maxEvents int, idleTimeout time.Duration) *Collector {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Collector{MaxEvents: maxEvents, IdleTimeout: idleTimeout}
}

// Kinds lists the snapshot kinds of the io_uring monitor family.
func (c *Collector) Kinds() []collector.Kind {
	return []collector.Kind{
		{Name: "io_uring_events", Func: c.Events},
	}
}

type eventData struct {
	TotalEvents int      `json:"total_events"`
	Events      []string `json:"events"`
}

// Events configures io_uring trace filters and drains trace_pipe until the
// event cap or the inactivity timeout is reached, whichever first. A missing
// tracefs mount is an expected environment condition and is reported as an
// informational IO_FAILURE naming the requirement.
func (c *Collector) Events(ctx context.Context) *response.Envelope {
	dir := c.TracingDir
	if dir == "" {
		dir = tracefs.Find()
	}
	if dir == "" {
		return response.Failure(response.TaskTypeState, subtypeEvents, response.CodeIOFailure,
			"kernel tracing interface not available; io_uring monitoring requires root privileges and a mounted tracefs")
	}

	if err := c.ensureFilter(dir); err != nil {
		return response.Failure(response.TaskTypeState, subtypeEvents, response.CodeIOFailure, fmt.Sprintf("failed to configure trace filter: %v", err))
	}

	if err := os.WriteFile(filepath.Join(dir, "tracing_on"), []byte("1"), 0o644); err != nil {
		return response.Failure(response.TaskTypeState, subtypeEvents, response.CodeIOFailure, fmt.Sprintf("failed to enable tracing: %v", err))
	}

	events, err := c.collect(ctx, filepath.Join(dir, "trace_pipe"))
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeEvents, response.CodeExecutionFailure, fmt.Sprintf("failed to read trace pipe: %v", err))
	}

	return response.Success(response.TaskTypeState, subtypeEvents, eventData{
		TotalEvents: len(events),
		Events:      events,
	})
}

// ensureFilter adds the io_uring function filters that are not already
// present, so repeated snapshots do not grow or reset the filter list.
func (c *Collector) ensureFilter(dir string) error {
	available := tracefs.ReadLines(filepath.Join(dir, "available_filter_functions"))

	wanted := make([]string, 0, 64)
	for _, fn := range available {
		// available_filter_functions lines may carry a module suffix;
		// the function name is the first field.
		name := strings.Fields(fn)[0]
		if strings.HasPrefix(name, filterPrefix) {
			wanted = append(wanted, name)
		}
	}
	if len(wanted) == 0 {
		return fmt.Errorf("no %s_* functions in available_filter_functions", filterPrefix)
	}

	current := make(map[string]bool)
	for _, line := range tracefs.ReadLines(filepath.Join(dir, "set_ftrace_filter")) {
		if !strings.HasPrefix(line, "#") {
			current[strings.Fields(line)[0]] = true
		}
	}

	filterPath := filepath.Join(dir, "set_ftrace_filter")
	f, err := os.OpenFile(filterPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, name := range wanted {
		if current[name] {
			continue
		}
		if _, err := fmt.Fprintln(f, name); err != nil {
			return fmt.Errorf("appending %s: %w", name, err)
		}
	}

	return nil
}

// collect drains trace_pipe, keeping lines that mention io_uring, until the
// event cap, the inactivity timeout, or context cancellation.
func (c *Collector) collect(ctx context.Context, pipePath string) ([]string, error) {
	pipe, err := os.Open(pipePath)
	if err != nil {
		return nil, err
	}
	defer pipe.Close()

	// The reader goroutine parks on a blocking pipe read; cancel on return
	// so it never blocks forever handing over a final line.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	maxEvents := c.MaxEvents
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	idle := c.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(pipe)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
		}
	}()

	events := make([]string, 0, maxEvents)
	timer := time.NewTimer(idle)
	defer timer.Stop()

	for len(events) < maxEvents {
		select {
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return events, err
				default:
					return events, nil
				}
			}
			if strings.Contains(line, filterPrefix) {
				events = append(events, line)
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idle)
		case <-timer.C:
			return events, nil
		case <-ctx.Done():
			return events, nil
		}
	}

	return events, nil
}
