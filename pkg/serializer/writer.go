// Package serializer writes snapshot payloads to their output destinations.
package serializer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Format identifies an output encoding.
type Format string

const (
	FormatJSON Format = "json"
)

// IsUnknown reports whether the format is not a supported encoding.
func (f Format) IsUnknown() bool {
	return f != FormatJSON
}

// WriteJSONFile serializes v as indented JSON to path, creating parent
// directories as needed. The file is written with 0644 permissions.
func WriteJSONFile(path string, v any) error {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize to json: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(path, j, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// WriteStdout serializes v as indented JSON to standard output.
func WriteStdout(v any) error {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize to json: %w", err)
	}

	fmt.Println(string(j))
	return nil
}
