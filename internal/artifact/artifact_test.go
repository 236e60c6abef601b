package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/autopost/botrunner/internal/utils/logger"
)

func TestPublish(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "twitter_bot.log")
	if err := os.WriteFile(logFile, []byte("line 1\nline 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	logger.RecordFetched("https://x/115/chromedriver-linux64.zip")

	store := &Store{Dir: t.TempDir()}
	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	runDir, err := store.Publish(logFile, RunInfo{
		RunID:      "run-1",
		Trigger:    "schedule",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Error:      "bot command failed",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(runDir, "twitter_bot.log"))
	if err != nil || string(data) != "line 1\nline 2\n" {
		t.Fatalf("log copy = %q, %v", data, err)
	}
	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("original log must stay in place: %v", err)
	}

	report, err := os.ReadFile(filepath.Join(runDir, "fetchurl-FetchedFiles.txt"))
	if err != nil || !strings.Contains(string(report), "chromedriver-linux64.zip") {
		t.Errorf("fetch report = %q, %v", report, err)
	}

	info, err := ReadRunInfo(runDir)
	if err != nil {
		t.Fatalf("ReadRunInfo: %v", err)
	}
	if info.RunID != "run-1" || info.Success || info.Error != "bot command failed" || len(info.Files) != 2 {
		t.Errorf("unexpected summary %+v", info)
	}
}

func TestPublishMissingLog(t *testing.T) {
	store := &Store{Dir: t.TempDir()}
	runDir, err := store.Publish(filepath.Join(t.TempDir(), "missing.log"), RunInfo{RunID: "run-2"})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if _, err := ReadRunInfo(runDir); err != nil {
		t.Errorf("summary should still be written: %v", err)
	}
}

func TestPublishRetention(t *testing.T) {
	store := &Store{Dir: t.TempDir(), Retain: 2}
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := store.Publish("", RunInfo{
			RunID:     fmt.Sprintf("run-%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(store.Dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if strings.Join(names, ",") != "run-2,run-3" {
		t.Errorf("kept %v, want newest two", names)
	}
}
