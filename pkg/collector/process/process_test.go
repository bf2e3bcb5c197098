package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueless-admin/cladm/pkg/response"
)

func writeStat(t *testing.T, root string, pid, content string) {
	t.Helper()
	dir := filepath.Join(root, pid)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(content), 0o644))
}

func TestReadStatParsesCommWithSpacesAndParens(t *testing.T) {
	root := t.TempDir()
	// comm "tmux: server (1)" exercises both embedded spaces and parens.
	stat := "1234 (tmux: server (1)) S 1 1234 1234 0 -1 4194560 1000 0 0 0 50 25 0 0 20 0 1 0 100 1048576 512"
	writeStat(t, root, "1234", stat)

	c := &Collector{ProcRoot: root, PageSize: 4096}
	info, err := c.readStat(filepath.Join(root, "1234", "stat"))
	require.NoError(t, err)

	assert.Equal(t, "tmux: server (1)", info.Name)
	assert.Equal(t, "S", info.State)
	assert.Equal(t, uint64(75), info.CPUTicks)
	require.NotNil(t, info.RSSBytes)
	assert.Equal(t, int64(512*4096), *info.RSSBytes)
}

func TestProcessesSkipsVanishedAndMalformedEntries(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, "1", "1 (init) S 0 1 1 0 -1 4194560 0 0 0 0 1 1 0 0 20 0 1 0 5 1000 10")
	// A numeric dir without a stat file simulates a process that exited
	// between the listing and the read.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2"), 0o755))
	writeStat(t, root, "3", "garbage")
	// Non-numeric entries are ignored outright.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sys"), 0o755))

	c := &Collector{ProcRoot: root, PageSize: 4096}
	env := c.Processes(context.Background())

	require.Equal(t, response.StatusSuccess, env.Status)
	data := env.Data.(processData)
	assert.Equal(t, 1, data.TotalProcesses)
	assert.Equal(t, "init", data.Processes[0].Name)
}

func TestProcessesMissingProcRoot(t *testing.T) {
	c := &Collector{ProcRoot: filepath.Join(t.TempDir(), "missing")}
	env := c.Processes(context.Background())

	require.Equal(t, response.StatusFailure, env.Status)
	assert.Equal(t, response.CodeIOFailure, env.Error.Code)
}

func TestThreads(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, "10", "10 (worker) S 1 10 10 0 -1 0 0 0 0 0 2 3 0 0 20 0 2 0 7 1000 20")
	taskRoot := filepath.Join(root, "10", "task")
	for _, tid := range []string{"10", "11"} {
		dir := filepath.Join(taskRoot, tid)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"),
			[]byte(tid+" (worker) R 1 10 10 0 -1 0 0 0 0 0 1 1 0 0 20 0 2 0 7 1000 20"), 0o644))
	}

	c := &Collector{ProcRoot: root, PageSize: 4096}
	env := c.Threads(context.Background())

	require.Equal(t, response.StatusSuccess, env.Status)
	data := env.Data.(threadData)
	require.Equal(t, 2, data.TotalThreads)
	assert.Equal(t, 10, data.Threads[0].PID)
	assert.ElementsMatch(t, []int{10, 11}, []int{data.Threads[0].TID, data.Threads[1].TID})
}

// TestProcessesAgainstLiveProc exercises the real process table: the test
// process itself must show up with a plausible RSS.
func TestProcessesAgainstLiveProc(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("/proc not available")
	}

	env := New().Processes(context.Background())
	require.Equal(t, response.StatusSuccess, env.Status)

	data := env.Data.(processData)
	require.NotEmpty(t, data.Processes)

	self := os.Getpid()
	found := false
	for _, p := range data.Processes {
		if p.RSSBytes != nil {
			assert.GreaterOrEqual(t, *p.RSSBytes, int64(0))
		}
		if p.PID == self {
			found = true
		}
	}
	assert.True(t, found, "expected to find the test process itself (pid %d)", self)
}
