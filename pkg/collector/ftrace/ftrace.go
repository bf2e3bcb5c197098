// Package ftrace snapshots the state of the kernel function tracer. A
// tampered tracer configuration (unexpected filters, a tracer left enabled)
// is a classic rootkit indicator.
package ftrace

import (
	"context"
	"os"
	"path/filepath"

	"github.com/clueless-admin/cladm/pkg/collector"
	"github.com/clueless-admin/cladm/pkg/response"
	"github.com/clueless-admin/cladm/pkg/tracefs"
)

const subtypeStatus = "FTRACE_STATUS"

// DefaultMaxTraceLines bounds the trace excerpt included per snapshot.
const DefaultMaxTraceLines = 10

// Collector reads the tracing directory. An empty TracingDir is resolved via
// tracefs.Find at snapshot time.
type Collector struct {
	TracingDir    string
	MaxTraceLines int
}

// New returns a collector with the given trace excerpt bound; zero or
// negative means DefaultMaxTraceLines.
func New(maxTraceLines int) *Collector {
	if maxTraceLines <= 0 {
		maxTraceLines = DefaultMaxTraceLines
	}
	return &Collector{MaxTraceLines: maxTraceLines}
}

// Kinds lists the snapshot kinds of the ftrace monitor family.
func (c *Collector) Kinds() []collector.Kind {
	return []collector.Kind{
		{Name: "ftrace_status", Func: c.Status},
	}
}

type statusData struct {
	FtraceAvailable  bool     `json:"ftrace_available"`
	TracingOn        bool     `json:"tracing_on,omitempty"`
	CurrentTracer    string   `json:"current_tracer,omitempty"`
	AvailableTracers []string `json:"available_tracers,omitempty"`
	EnabledEvents    []string `json:"enabled_events,omitempty"`
	FtraceFilter     []string `json:"set_ftrace_filter,omitempty"`
	FtraceNotrace    []string `json:"set_ftrace_notrace,omitempty"`
	TraceOptions     []string `json:"trace_options,omitempty"`
	TraceEntries     []string `json:"trace_entries,omitempty"`
}

// Status reads the tracer configuration. An unmounted tracefs is reported as
// ftrace_available=false, which is a finding in itself rather than an error.
func (c *Collector) Status(ctx context.Context) *response.Envelope {
	dir := c.TracingDir
	if dir == "" {
		dir = tracefs.Find()
	}
	if dir == "" {
		return response.Success(response.TaskTypeState, subtypeStatus, statusData{FtraceAvailable: false})
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return response.Success(response.TaskTypeState, subtypeStatus, statusData{FtraceAvailable: false})
	}

	maxLines := c.MaxTraceLines
	if maxLines <= 0 {
		maxLines = DefaultMaxTraceLines
	}

	data := statusData{
		FtraceAvailable:  true,
		TracingOn:        tracefs.ReadString(filepath.Join(dir, "tracing_on")) == "1",
		CurrentTracer:    tracefs.ReadString(filepath.Join(dir, "current_tracer")),
		AvailableTracers: tracefs.ReadLines(filepath.Join(dir, "available_tracers")),
		EnabledEvents:    tracefs.ReadLines(filepath.Join(dir, "set_event")),
		FtraceFilter:     tracefs.ReadLines(filepath.Join(dir, "set_ftrace_filter")),
		FtraceNotrace:    tracefs.ReadLines(filepath.Join(dir, "set_ftrace_notrace")),
		TraceOptions:     tracefs.ReadLines(filepath.Join(dir, "trace_options")),
	}

	if entries := tracefs.ReadLines(filepath.Join(dir, "trace")); len(entries) > maxLines {
		data.TraceEntries = entries[len(entries)-maxLines:]
	} else {
		data.TraceEntries = entries
	}

	return response.Success(response.TaskTypeState, subtypeStatus, data)
}
