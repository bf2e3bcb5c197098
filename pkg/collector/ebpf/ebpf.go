// Package ebpf enumerates loaded eBPF programs. The primary mechanism is the
// bpftool binary, which reports full attach metadata as JSON. When bpftool is
// absent the collector falls back to iterating kernel program IDs directly
// via the bpf(2) introspection API, which yields reduced fidelity (no attach
// metadata). An environment where neither mechanism works is reported as
// TOOL_NOT_AVAILABLE, not as an error.
package ebpf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	cilium "github.com/cilium/ebpf"

	"github.com/clueless-admin/cladm/pkg/collector"
	"github.com/clueless-admin/cladm/pkg/response"
)

const subtypeLoadedPrograms = "LOADED_EBPF_PROGRAMS"

// Collector enumerates loaded eBPF programs.
type Collector struct {
	// ForceFallback skips bpftool and goes straight to program-ID
	// iteration.
	ForceFallback bool

	// lookPath and runBpftool are swapped out in tests.
	lookPath   func(file string) (string, error)
	runBpftool func(ctx context.Context) ([]byte, error)
}

// New returns a collector using the real bpftool binary.
func New(forceFallback bool) *Collector {
	return &Collector{
		ForceFallback: forceFallback,
		lookPath:      exec.LookPath,
		runBpftool: func(ctx context.Context) ([]byte, error) {
			return exec.CommandContext(ctx, "bpftool", "-j", "prog", "list").Output()
		},
	}
}

// Kinds lists the snapshot kinds of the eBPF monitor family.
func (c *Collector) Kinds() []collector.Kind {
	return []collector.Kind{
		{Name: "loaded_programs", Func: c.LoadedPrograms},
	}
}

// Program is one loaded eBPF program. AttachType is empty on the fallback
// path.
type Program struct {
	ID         uint32 `json:"id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	AttachType string `json:"attach_type,omitempty"`
}

type programData struct {
	Source           string              `json:"source"`
	LoadedPrograms   []Program           `json:"loaded_programs"`
	AttachmentPoints map[string][]uint32 `json:"attachment_points"`
}

// LoadedPrograms enumerates loaded eBPF programs via bpftool, falling back
// to kernel program-ID iteration.
func (c *Collector) LoadedPrograms(ctx context.Context) *response.Envelope {
	if !c.ForceFallback {
		if _, err := c.lookPath("bpftool"); err == nil {
			return c.viaBpftool(ctx)
		}
	}
	return c.viaProgramIDs()
}

func (c *Collector) viaBpftool(ctx context.Context) *response.Envelope {
	out, err := c.runBpftool(ctx)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeLoadedPrograms, response.CodeExecutionFailure, fmt.Sprintf("bpftool prog list failed: %v", err))
	}

	programs, err := parseBpftoolProgList(out)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeLoadedPrograms, response.CodeExecutionFailure, fmt.Sprintf("failed to parse bpftool output: %v", err))
	}

	return response.Success(response.TaskTypeState, subtypeLoadedPrograms, programData{
		Source:           "bpftool",
		LoadedPrograms:   programs,
		AttachmentPoints: attachmentPoints(programs),
	})
}

// parseBpftoolProgList decodes the JSON array printed by
// "bpftool -j prog list".
func parseBpftoolProgList(out []byte) ([]Program, error) {
	var raw []struct {
		ID         uint32 `json:"id"`
		Type       string `json:"type"`
		Name       string `json:"name"`
		AttachType string `json:"attach_type"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, err
	}

	programs := make([]Program, 0, len(raw))
	for _, p := range raw {
		programs = append(programs, Program{
			ID:         p.ID,
			Type:       p.Type,
			Name:       p.Name,
			AttachType: p.AttachType,
		})
	}
	return programs, nil
}

// viaProgramIDs walks the kernel's loaded-program ID space. Individual
// programs that disappear between the ID walk and the open are skipped.
func (c *Collector) viaProgramIDs() *response.Envelope {
	var programs []Program

	var id cilium.ProgramID
	for {
		next, err := cilium.ProgramGetNextID(id)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				break // end of the ID space
			}
			if errors.Is(err, cilium.ErrNotSupported) || errors.Is(err, os.ErrPermission) {
				return response.Failure(response.TaskTypeState, subtypeLoadedPrograms, response.CodeToolNotAvailable,
					fmt.Sprintf("neither bpftool nor bpf introspection is available: %v", err))
			}
			return response.Failure(response.TaskTypeState, subtypeLoadedPrograms, response.CodeExecutionFailure, fmt.Sprintf("program ID walk failed: %v", err))
		}
		id = next

		prog, err := cilium.NewProgramFromID(id)
		if err != nil {
			continue
		}

		info, err := prog.Info()
		if err != nil {
			prog.Close()
			continue
		}

		entry := Program{Type: info.Type.String(), Name: info.Name}
		if progID, ok := info.ID(); ok {
			entry.ID = uint32(progID)
		}
		programs = append(programs, entry)
		prog.Close()
	}

	return response.Success(response.TaskTypeState, subtypeLoadedPrograms, programData{
		Source:           "bpf_prog_ids",
		LoadedPrograms:   programs,
		AttachmentPoints: attachmentPoints(programs),
	})
}

// attachmentPoints groups program IDs by attach type, omitting programs
// without attach metadata.
func attachmentPoints(programs []Program) map[string][]uint32 {
	points := make(map[string][]uint32)
	for _, p := range programs {
		if p.AttachType == "" {
			continue
		}
		points[p.AttachType] = append(points[p.AttachType], p.ID)
	}
	return points
}
