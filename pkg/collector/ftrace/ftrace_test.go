package ftrace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueless-admin/cladm/pkg/response"
)

func writeTracingFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestStatusReadsTracerConfiguration(t *testing.T) {
	dir := t.TempDir()
	writeTracingFile(t, dir, "tracing_on", "1\n")
	writeTracingFile(t, dir, "current_tracer", "function\n")
	writeTracingFile(t, dir, "available_tracers", "function function_graph nop\n")
	writeTracingFile(t, dir, "set_event", "sched:sched_switch\n")
	writeTracingFile(t, dir, "set_ftrace_filter", "#### all functions enabled ####\n")

	var trace string
	for i := 0; i < 20; i++ {
		trace += fmt.Sprintf("entry-%d\n", i)
	}
	writeTracingFile(t, dir, "trace", trace)

	c := &Collector{TracingDir: dir, MaxTraceLines: 5}
	env := c.Status(context.Background())

	require.Equal(t, response.StatusSuccess, env.Status)
	data := env.Data.(statusData)
	assert.True(t, data.FtraceAvailable)
	assert.True(t, data.TracingOn)
	assert.Equal(t, "function", data.CurrentTracer)
	assert.Equal(t, []string{"sched:sched_switch"}, data.EnabledEvents)

	require.Len(t, data.TraceEntries, 5)
	assert.Equal(t, "entry-15", data.TraceEntries[0])
	assert.Equal(t, "entry-19", data.TraceEntries[4])
}

func TestStatusUnreadableFilesYieldEmptyFields(t *testing.T) {
	dir := t.TempDir()
	writeTracingFile(t, dir, "tracing_on", "0\n")

	c := &Collector{TracingDir: dir, MaxTraceLines: 10}
	env := c.Status(context.Background())

	require.Equal(t, response.StatusSuccess, env.Status)
	data := env.Data.(statusData)
	assert.True(t, data.FtraceAvailable)
	assert.False(t, data.TracingOn)
	assert.Empty(t, data.CurrentTracer)
	assert.Nil(t, data.AvailableTracers)
}

func TestStatusMissingTracefs(t *testing.T) {
	c := &Collector{TracingDir: filepath.Join(t.TempDir(), "missing")}

	env := c.Status(context.Background())
	require.Equal(t, response.StatusSuccess, env.Status)

	// Absence of tracefs is a finding, not an error.
	data := env.Data.(statusData)
	assert.False(t, data.FtraceAvailable)
}
