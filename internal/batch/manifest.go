package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Manifest describes one batch run.
type Manifest struct {
	RunID      string          `json:"run_id"`
	Rig        string          `json:"rig"`
	Started    time.Time       `json:"started"`
	Finished   time.Time       `json:"finished"`
	DurationMS int64           `json:"duration_ms"`
	Frames     []ManifestEntry `json:"frames"`
}

// ManifestEntry represents one frame in the output manifest.
type ManifestEntry struct {
	Frame    float64                `json:"frame"`
	Success  bool                   `json:"success"`
	Error    string                 `json:"error,omitempty"`
	Image    string                 `json:"image,omitempty"`
	Applied  int                    `json:"writebacks,omitempty"`
	Matrices map[string][16]float64 `json:"matrices,omitempty"`
}

// NewManifest builds the manifest of a finished run.
func NewManifest(rigPath string, started time.Time, results []Result) Manifest {
	finished := time.Now()
	m := Manifest{
		RunID:      uuid.NewString(),
		Rig:        rigPath,
		Started:    started,
		Finished:   finished,
		DurationMS: finished.Sub(started).Milliseconds(),
		Frames:     make([]ManifestEntry, len(results)),
	}
	for i, r := range results {
		e := ManifestEntry{
			Frame:   r.Frame,
			Success: r.Success,
			Error:   r.Error,
			Image:   r.Image,
			Applied: r.Applied,
		}
		if len(r.Matrices) > 0 {
			e.Matrices = make(map[string][16]float64, len(r.Matrices))
			for k, mat := range r.Matrices {
				e.Matrices[k] = mat
			}
		}
		m.Frames[i] = e
	}
	return m
}

// WriteManifest writes the manifest as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("batch: write %s: %w", path, err)
	}
	return nil
}
