package snapshotter

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/clueless-admin/cladm/pkg/serializer"
)

// manifestFilename sits alongside the iteration files in each run directory.
const manifestFilename = "manifest.json"

// Manifest records the identity and parameters of one run so that output
// directories remain interpretable after the fact. It is written once at
// loop start and never read back by the tool itself.
type Manifest struct {
	RunID            string  `json:"run_id"`
	Family           string  `json:"family"`
	RootTimestamp    string  `json:"root_timestamp"`
	StartedAt        string  `json:"started_at"`
	DurationSeconds  float64 `json:"duration_seconds"`
	FrequencySeconds float64 `json:"frequency_seconds"`
}

func newManifest(family, rootTimestamp string, duration, frequency time.Duration) *Manifest {
	return &Manifest{
		RunID:            uuid.New().String(),
		Family:           family,
		RootTimestamp:    rootTimestamp,
		StartedAt:        time.Now().UTC().Format(time.RFC3339Nano),
		DurationSeconds:  duration.Seconds(),
		FrequencySeconds: frequency.Seconds(),
	}
}

func (m *Manifest) write(runDir string) error {
	return serializer.WriteJSONFile(filepath.Join(runDir, manifestFilename), m)
}
