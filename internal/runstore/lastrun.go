package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lastRunFile = "last_run.json"

// LastRun records the most recent job run.
type LastRun struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Trigger    string    `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Success    bool      `json:"success" yaml:"success"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Artifact   string    `json:"artifact,omitempty" yaml:"artifact,omitempty"`
}

// LastRunPath returns the marker location inside stateDir.
func LastRunPath(stateDir string) string {
	return filepath.Join(stateDir, lastRunFile)
}

// ReadLastRun returns the recorded run, or nil when nothing ran yet.
func ReadLastRun(stateDir string) (*LastRun, error) {
	var rec LastRun
	if err := ReadJSON(LastRunPath(stateDir), &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read last-run marker: %w", err)
	}
	return &rec, nil
}

// WriteLastRun replaces the marker with rec.
func WriteLastRun(stateDir string, rec LastRun) error {
	return WriteJSON(LastRunPath(stateDir), rec)
}
