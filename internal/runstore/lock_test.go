package runstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireRunLock_BlocksConcurrentAcquire(t *testing.T) {
	stateDir := t.TempDir()

	lock, err := AcquireRunLock(stateDir, "run-1", time.Hour)
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	_, err = AcquireRunLock(stateDir, "run-2", time.Hour)
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	lock2, err := AcquireRunLock(stateDir, "run-3", time.Hour)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireRunLock_RecordsOwner(t *testing.T) {
	stateDir := t.TempDir()
	lock, err := AcquireRunLock(stateDir, "run-owner", 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lock.Release()

	var owner LockOwner
	if err := ReadJSON(filepath.Join(stateDir, runLockDirName, runLockOwnerFile), &owner); err != nil {
		t.Fatalf("read owner: %v", err)
	}
	if owner.RunID != "run-owner" || owner.PID != os.Getpid() || owner.CreatedAt == "" {
		t.Errorf("unexpected owner %+v", owner)
	}
}

func TestAcquireRunLock_BreaksStaleLock(t *testing.T) {
	stateDir := t.TempDir()
	origNow := now
	defer func() { now = origNow }()

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	now = func() time.Time { return start }
	if _, err := AcquireRunLock(stateDir, "crashed", time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	now = func() time.Time { return start.Add(30 * time.Minute) }
	if _, err := AcquireRunLock(stateDir, "too-early", time.Hour); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("fresh lock must hold, got %v", err)
	}

	now = func() time.Time { return start.Add(2 * time.Hour) }
	lock, err := AcquireRunLock(stateDir, "recovered", time.Hour)
	if err != nil {
		t.Fatalf("stale lock should be broken: %v", err)
	}
	defer lock.Release()

	var owner LockOwner
	if err := ReadJSON(filepath.Join(stateDir, runLockDirName, runLockOwnerFile), &owner); err != nil {
		t.Fatal(err)
	}
	if owner.RunID != "recovered" {
		t.Errorf("owner not replaced: %+v", owner)
	}
}

func TestAcquireRunLock_ZeroTTLNeverBreaks(t *testing.T) {
	stateDir := t.TempDir()
	origNow := now
	defer func() { now = origNow }()

	now = func() time.Time { return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) }
	if _, err := AcquireRunLock(stateDir, "old", 0); err != nil {
		t.Fatal(err)
	}
	now = origNow
	if _, err := AcquireRunLock(stateDir, "new", 0); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected lock to hold with zero ttl, got %v", err)
	}
}

func TestAcquireRunLock_RequiresDir(t *testing.T) {
	if _, err := AcquireRunLock("  ", "x", 0); err == nil {
		t.Fatal("expected error for empty state dir")
	}
	if err := (RunLock{}).Release(); err != nil {
		t.Fatalf("zero lock release: %v", err)
	}
}

func TestLastRunRoundTrip(t *testing.T) {
	stateDir := t.TempDir()

	rec, err := ReadLastRun(stateDir)
	if err != nil || rec != nil {
		t.Fatalf("expected no marker, got %+v, %v", rec, err)
	}

	want := LastRun{
		RunID:      "abc",
		Trigger:    "schedule",
		StartedAt:  time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 5, 1, 8, 3, 0, 0, time.UTC),
		Error:      "no stable fallback",
	}
	if err := WriteLastRun(stateDir, want); err != nil {
		t.Fatalf("WriteLastRun: %v", err)
	}
	got, err := ReadLastRun(stateDir)
	if err != nil {
		t.Fatalf("ReadLastRun: %v", err)
	}
	if got.RunID != want.RunID || !got.StartedAt.Equal(want.StartedAt) || got.Success || got.Error != want.Error {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := os.WriteFile(LastRunPath(stateDir), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadLastRun(stateDir); err == nil {
		t.Error("expected error for corrupt marker")
	}
}
