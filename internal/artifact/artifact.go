// Package artifact keeps the log file of every run in a retained
// directory, one subdirectory per run.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/autopost/botrunner/internal/utils/logger"
	"gopkg.in/yaml.v3"
)

const indexFile = "run.yaml"

// Store publishes run artifacts below Dir.
type Store struct {
	Dir string
	// Retain is the number of run directories kept; zero keeps all.
	Retain int
}

// RunInfo is written next to the published files.
type RunInfo struct {
	RunID      string    `yaml:"runId"`
	Trigger    string    `yaml:"trigger,omitempty"`
	StartedAt  time.Time `yaml:"startedAt"`
	FinishedAt time.Time `yaml:"finishedAt"`
	Success    bool      `yaml:"success"`
	Error      string    `yaml:"error,omitempty"`
	Files      []string  `yaml:"files"`
}

// Publish copies logFile into the run directory together with the list of
// downloaded files and the run summary. The log is copied, never moved, so
// the append-only log keeps growing across runs. A missing log file is
// reported but the summary is still written.
func (s *Store) Publish(logFile string, info RunInfo) (string, error) {
	log := logger.Logger()

	runDir := filepath.Join(s.Dir, info.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("creating artifact directory %s: %w", runDir, err)
	}

	var copyErr error
	if logFile != "" {
		dst := filepath.Join(runDir, filepath.Base(logFile))
		if copyErr = copyFile(logFile, dst); copyErr == nil {
			info.Files = append(info.Files, filepath.Base(dst))
		}
	}

	if report, err := logger.WriteListFetchedToFile(runDir); err != nil {
		log.Warnf("failed to write fetch report: %v", err)
	} else if report != "" {
		info.Files = append(info.Files, filepath.Base(report))
	}

	data, err := yaml.Marshal(&info)
	if err != nil {
		return "", fmt.Errorf("encoding run summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, indexFile), data, 0644); err != nil {
		return "", fmt.Errorf("writing run summary: %w", err)
	}

	if err := s.prune(); err != nil {
		log.Warnf("artifact retention: %v", err)
	}

	if copyErr != nil {
		return runDir, fmt.Errorf("publishing log file: %w", copyErr)
	}
	log.Infof("published run artifacts to %s", runDir)
	return runDir, nil
}

// ReadRunInfo loads the summary of a published run.
func ReadRunInfo(runDir string) (*RunInfo, error) {
	data, err := os.ReadFile(filepath.Join(runDir, indexFile))
	if err != nil {
		return nil, err
	}
	var info RunInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", indexFile, err)
	}
	return &info, nil
}

// prune removes the oldest run directories beyond Retain, ordered by the
// start time recorded in each summary.
func (s *Store) prune() error {
	if s.Retain <= 0 {
		return nil
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return err
	}

	type run struct {
		dir     string
		started time.Time
	}
	var runs []run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.Dir, e.Name())
		info, err := ReadRunInfo(dir)
		if err != nil {
			continue
		}
		runs = append(runs, run{dir: dir, started: info.StartedAt})
	}
	if len(runs) <= s.Retain {
		return nil
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].started.After(runs[j].started) })
	for _, r := range runs[s.Retain:] {
		if err := os.RemoveAll(r.dir); err != nil {
			return fmt.Errorf("removing %s: %w", r.dir, err)
		}
		logger.Logger().Debugf("removed old artifacts %s", r.dir)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
