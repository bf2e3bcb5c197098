// Package kallsyms snapshots the kernel symbol table. Symbol names or
// addresses that change between snapshots, or symbols appearing under
// unexpected modules, are rootkit indicators.
package kallsyms

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/clueless-admin/cladm/pkg/collector"
	"github.com/clueless-admin/cladm/pkg/response"
)

const subtypeKallsyms = "KALLSYMS"

// DefaultMaxSymbols caps the symbols materialized per snapshot. The
// post-filter total is always counted in full.
const DefaultMaxSymbols = 5000

// Options filters and bounds a kallsyms snapshot.
type Options struct {
	// NameFilter is an optional regexp applied to symbol names.
	NameFilter string
	// ModuleFilter is an optional regexp applied to module names; core
	// kernel symbols have an empty module name.
	ModuleFilter string
	// MaxSymbols caps the returned list; zero or negative means
	// DefaultMaxSymbols. The cap truncates only the returned list, never
	// the counted total.
	MaxSymbols int
}

// Collector reads the kernel symbol table. Paths are swappable for tests.
type Collector struct {
	KallsymsPath     string
	KptrRestrictPath string
	Options          Options
}

// New returns a collector reading the real /proc/kallsyms.
func New(opts Options) *Collector {
	return &Collector{
		KallsymsPath:     "/proc/kallsyms",
		KptrRestrictPath: "/proc/sys/kernel/kptr_restrict",
		Options:          opts,
	}
}

// Kinds lists the snapshot kinds of the kallsyms monitor family.
func (c *Collector) Kinds() []collector.Kind {
	return []collector.Kind{
		{Name: "kallsyms", Func: c.Symbols},
	}
}

// Symbol is one kallsyms line. Module is empty for core kernel symbols.
type Symbol struct {
	Address string `json:"addr"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Module  string `json:"module,omitempty"`
}

type symbolData struct {
	TotalSymbols    int      `json:"total_symbols"`
	ReturnedSymbols int      `json:"returned_symbols"`
	KptrRestrict    *int     `json:"kptr_restrict"`
	Symbols         []Symbol `json:"symbols"`
}

// Symbols snapshots the symbol table, applying the configured filters before
// counting and capping only the materialized list.
func (c *Collector) Symbols(ctx context.Context) *response.Envelope {
	var nameRE, moduleRE *regexp.Regexp
	var err error

	if c.Options.NameFilter != "" {
		if nameRE, err = regexp.Compile(c.Options.NameFilter); err != nil {
			return response.Failure(response.TaskTypeState, subtypeKallsyms, response.CodeInvalidArguments, fmt.Sprintf("invalid name filter: %v", err))
		}
	}
	if c.Options.ModuleFilter != "" {
		if moduleRE, err = regexp.Compile(c.Options.ModuleFilter); err != nil {
			return response.Failure(response.TaskTypeState, subtypeKallsyms, response.CodeInvalidArguments, fmt.Sprintf("invalid module filter: %v", err))
		}
	}

	f, err := os.Open(c.KallsymsPath)
	if err != nil {
		return response.Failure(response.TaskTypeState, subtypeKallsyms, response.CodeIOFailure, fmt.Sprintf("failed to open %s: %v", c.KallsymsPath, err))
	}
	defer f.Close()

	maxSymbols := c.Options.MaxSymbols
	if maxSymbols <= 0 {
		maxSymbols = DefaultMaxSymbols
	}

	total := 0
	symbols := make([]Symbol, 0, min(maxSymbols, 1024))

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		sym, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if nameRE != nil && !nameRE.MatchString(sym.Name) {
			continue
		}
		if moduleRE != nil && !moduleRE.MatchString(sym.Module) {
			continue
		}

		total++
		if len(symbols) < maxSymbols {
			symbols = append(symbols, sym)
		}
	}
	if err := scanner.Err(); err != nil {
		return response.Failure(response.TaskTypeState, subtypeKallsyms, response.CodeExecutionFailure, fmt.Sprintf("error reading %s: %v", c.KallsymsPath, err))
	}

	return response.Success(response.TaskTypeState, subtypeKallsyms, symbolData{
		TotalSymbols:    total,
		ReturnedSymbols: len(symbols),
		KptrRestrict:    c.readKptrRestrict(),
		Symbols:         symbols,
	})
}

// parseLine parses "address type name [module]". A trailing bracketed token
// is the owning module; its absence marks a core kernel symbol.
func parseLine(line string) (Symbol, bool) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) < 3 {
		return Symbol{}, false
	}

	sym := Symbol{
		Address: parts[0],
		Type:    parts[1],
	}

	last := parts[len(parts)-1]
	if len(parts) > 3 && strings.HasPrefix(last, "[") && strings.HasSuffix(last, "]") {
		sym.Module = strings.Trim(last, "[]")
		sym.Name = strings.Join(parts[2:len(parts)-1], " ")
	} else {
		sym.Name = strings.Join(parts[2:], " ")
	}

	return sym, true
}

// readKptrRestrict returns the kptr_restrict setting, or nil when it cannot
// be read. A non-zero value means symbol addresses are redacted to zeros.
func (c *Collector) readKptrRestrict() *int {
	raw, err := os.ReadFile(c.KptrRestrictPath)
	if err != nil {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil
	}
	return &v
}
