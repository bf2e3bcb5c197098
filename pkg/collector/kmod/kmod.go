// Package kmod snapshots the loaded-module table and the /sys/module tree.
// Comparing the two views exposes modules hiding themselves from
// /proc/modules, a common rootkit trick.
package kmod

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
	subtypeLoaded = "LOADED_MODULES"
	subtypeAll    = "ALL_MODULES"
)

// Collector reads the module interfaces. Roots are swappable for tests.
type Collector struct {
	ProcModules   string
	SysModuleRoot string
}

// New returns a collector reading the real module interfaces.
func New() *Collector {
	return &Collector{
		ProcModules:   "/proc/modules",
		SysModuleRoot: "/sys/module",
	}
}

// Kinds lists the snapshot kinds of the modules monitor family.
func (c *Collector) Kinds() []collector.Kind {
	return []collector.Kind{
		{Name: "loaded_modules", Func: c.LoadedModules},
		{Name: "all_modules", Func: c.AllModules},
	}
}

// Module is one row of /proc/modules. Offset is only present when the
// kernel exposes load addresses (kptr_restrict permitting).
type Module struct {
	Name        string   `json:"name"`
	Size        int64    `json:"size"`
	UsedByCount int      `json:"used_by_count"`
	UsedBy      []string `json:"used_by"`
	State       string   `json:"state"`
	Offset      string   `json:"offset,omitempty"`
}

type loadedData struct {
	TotalModules int      `json:"total_modules"`
	Modules      []Module `json:"modules"`
}

// LoadedModules parses /proc/modules.
func (c *Collector) LoadedModules(ctx context.Context) *response.Envelope {
	raw, err := os.ReadFile(c.ProcModules)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeLoaded, response.CodeIOFailure, fmt.Sprintf("failed to read %s: %v", c.ProcModules, err))
	}

	var modules []Module
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m, ok := parseModuleLine(line)
		if !ok {
			continue
		}
		modules = append(modules, m)
	}

	return response.Success(response.TaskTypeState, subtypeLoaded, loadedData{
		TotalModules: len(modules),
		Modules:      modules,
	})
}

// parseModuleLine parses one /proc/modules row:
// name size use_count holders state address
func parseModuleLine(line string) (Module, bool) {
	cols := strings.Fields(line)
	if len(cols) < 3 {
		return Module{}, false
	}

	size, err := strconv.ParseInt(cols[1], 10, 64)
	if err != nil {
		return Module{}, false
	}
	useCount, err := strconv.Atoi(cols[2])
	if err != nil {
		return Module{}, false
	}

	m := Module{
		Name:        cols[0],
		Size:        size,
		UsedByCount: useCount,
		UsedBy:      []string{},
	}

	if len(cols) > 3 && cols[3] != "-" {
		for _, dep := range strings.Split(strings.TrimSuffix(cols[3], ","), ",") {
			if dep = strings.TrimSpace(dep); dep != "" {
				m.UsedBy = append(m.UsedBy, dep)
			}
		}
	}
	if len(cols) > 4 {
		m.State = cols[4] // Live, Loading, or Unloading
	}
	if len(cols) > 5 {
		m.Offset = cols[5]
	}

	return m, true
}

// SysModule is one directory under /sys/module, classified as dynamically
// loaded or builtin.
type SysModule struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	State string `json:"state"`
}

type allData struct {
	TotalModules int         `json:"total_modules"`
	Modules      []SysModule `json:"modules"`
}

// markers whose presence distinguishes a dynamically loaded module from a
// builtin one.
var loadedMarkers = []string{"refcnt", "initstate", "holders"}

// AllModules enumerates /sys/module, classifying each entry as loaded or
// builtin.
func (c *Collector) AllModules(ctx context.Context) *response.Envelope {
	entries, err := os.ReadDir(c.SysModuleRoot)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeAll, response.CodeIOFailure, fmt.Sprintf("failed to read %s: %v", c.SysModuleRoot, err))
	}

	modules := make([]SysModule, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		modPath := filepath.Join(c.SysModuleRoot, e.Name())
		state := "builtin"
		for _, marker := range loadedMarkers {
			if _, err := os.Stat(filepath.Join(modPath, marker)); err == nil {
				state = "loaded"
				break
			}
		}

		modules = append(modules, SysModule{
			Name:  e.Name(),
			Path:  modPath,
			State: state,
		})
	}

	return response.Success(response.TaskTypeState, subtypeAll, allData{
		TotalModules: len(modules),
		Modules:      modules,
	})
}
