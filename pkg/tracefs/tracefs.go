// Package tracefs locates and reads the kernel tracing filesystem.
package tracefs

import (
	"os"
	"strings"
)

// candidates in preference order; the debugfs path serves older kernels.
var candidates = []string{
	"/sys/kernel/tracing",
	"/sys/kernel/debug/tracing",
}

// Find returns the mounted tracing directory, or "" when none is visible
// (tracefs unmounted or insufficient privileges).
func Find() string {
	for _, dir := range candidates {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return dir
		}
	}
	return ""
}

// ReadString returns the trimmed content of a tracing control file, or ""
// when it is unreadable.
func ReadString(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// ReadLines returns the non-empty trimmed lines of a tracing file. An
// unreadable file yields nil.
func ReadLines(path string) []string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
