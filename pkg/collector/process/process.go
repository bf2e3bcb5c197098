// Package process snapshots the process and thread tables from /proc.
package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/clueless-admin/cladm/pkg/collector"
	"github.com/clueless-admin/cladm/pkg/response"
)

const (
	subtypeProcesses = "PROCESSES"
	subtypeThreads   = "THREADS"
)

// Collector reads the process table. ProcRoot is swappable for tests.
type Collector struct {
	ProcRoot string
	// PageSize overrides the system page size when non-zero.
	PageSize int
}

// New returns a collector reading the real /proc.
func New() *Collector {
	return &Collector{ProcRoot: "/proc"}
}

// Kinds lists the snapshot kinds of the process monitor family.
func (c *Collector) Kinds() []collector.Kind {
	return []collector.Kind{
		{Name: "processes", Func: c.Processes},
		{Name: "threads", Func: c.Threads},
	}
}

// Info is one process or thread entry. RSSBytes is nil when the stat record
// could not be interpreted.
type Info struct {
	PID      int    `json:"pid"`
	TID      int    `json:"tid,omitempty"`
	Name     string `json:"name"`
	State    string `json:"state"`
	CPUTicks uint64 `json:"cpu_ticks"`
	RSSBytes *int64 `json:"rss_bytes"`
}

type processData struct {
	TotalProcesses int    `json:"total_processes"`
	Processes      []Info `json:"processes"`
}

type threadData struct {
	TotalThreads int    `json:"total_threads"`
	Threads      []Info `json:"threads"`
}

// Processes snapshots every numeric entry under /proc. Entries that vanish
// mid-read or are permission-denied are skipped, never escalated.
func (c *Collector) Processes(ctx context.Context) *response.Envelope {
	pids, err := c.listPIDs(c.ProcRoot)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeProcesses, response.CodeIOFailure, fmt.Sprintf("failed to list %s: %v", c.ProcRoot, err))
	}

	processes := make([]Info, 0, len(pids))
	for _, pid := range pids {
		if ctx.Err() != nil {
			break
		}
		info, err := c.readStat(filepath.Join(c.ProcRoot, strconv.Itoa(pid), "stat"))
		if err != nil {
			continue
		}
		info.PID = pid
		processes = append(processes, *info)
	}

	return response.Success(response.TaskTypeState, subtypeProcesses, processData{
		TotalProcesses: len(processes),
		Processes:      processes,
	})
}

// Threads snapshots every task of every process.
func (c *Collector) Threads(ctx context.Context) *response.Envelope {
	pids, err := c.listPIDs(c.ProcRoot)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeThreads, response.CodeIOFailure, fmt.Sprintf("failed to list %s: %v", c.ProcRoot, err))
	}

	var threads []Info
	for _, pid := range pids {
		if ctx.Err() != nil {
			break
		}
		taskDir := filepath.Join(c.ProcRoot, strconv.Itoa(pid), "task")
		tids, err := c.listPIDs(taskDir)
		if err != nil {
			// Process exited between the two listings.
			continue
		}
		for _, tid := range tids {
			info, err := c.readStat(filepath.Join(taskDir, strconv.Itoa(tid), "stat"))
			if err != nil {
				continue
			}
			info.PID = pid
			info.TID = tid
			threads = append(threads, *info)
		}
	}

	return response.Success(response.TaskTypeState, subtypeThreads, threadData{
		TotalThreads: len(threads),
		Threads:      threads,
	})
}

// listPIDs returns the numeric directory entries under dir.
func (c *Collector) listPIDs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// Field offsets within the stat record, counted after the closing paren of
// the comm field (see proc(5): field 3 is state, 14 utime, 15 stime, 24 rss).
const (
	statFieldState = 0
	statFieldUtime = 11
	statFieldStime = 12
	statFieldRSS   = 21
)

// readStat parses one /proc/<pid>/stat record. The process name is the text
// between the first '(' and the last ')' so embedded spaces and parens in
// comm do not shift the remaining fields.
func (c *Collector) readStat(path string) (*Info, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	line := strings.TrimSpace(string(raw))
	open := strings.IndexByte(line, '(')
	closing := strings.LastIndexByte(line, ')')
	if open < 0 || closing < open {
		return nil, fmt.Errorf("malformed stat record in %s", path)
	}

	name := line[open+1 : closing]
	fields := strings.Fields(line[closing+1:])
	if len(fields) <= statFieldState {
		return nil, fmt.Errorf("truncated stat record in %s", path)
	}

	info := &Info{
		Name:  name,
		State: fields[statFieldState],
	}

	if len(fields) > statFieldStime {
		utime, uerr := strconv.ParseUint(fields[statFieldUtime], 10, 64)
		stime, serr := strconv.ParseUint(fields[statFieldStime], 10, 64)
		if uerr == nil && serr == nil {
			info.CPUTicks = utime + stime
		}
	}

	if len(fields) > statFieldRSS {
		if pages, err := strconv.ParseInt(fields[statFieldRSS], 10, 64); err == nil {
			rss := pages * int64(c.pageSize())
			info.RSSBytes = &rss
		}
	}

	return info, nil
}

func (c *Collector) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return os.Getpagesize()
}
