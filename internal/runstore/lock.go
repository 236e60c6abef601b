package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/autopost/botrunner/internal/utils/logger"
)

const (
	runLockDirName   = ".run.lock"
	runLockOwnerFile = "owner.json"

	DefaultLockTTL = 2 * time.Hour
)

// ErrRunInProgress reports that another run holds the lock.
var ErrRunInProgress = errors.New("run already in progress")

// now is swapped in tests.
var now = time.Now

// RunLock is a held run lock.
type RunLock struct {
	lockDir string
}

// LockOwner is the content of the lock owner file.
type LockOwner struct {
	PID       int    `json:"pid"`
	RunID     string `json:"run_id"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// AcquireRunLock takes the run lock in stateDir for runID. A lock older than
// ttl is treated as abandoned and broken; ttl <= 0 never breaks a lock.
func AcquireRunLock(stateDir, runID string, ttl time.Duration) (RunLock, error) {
	target := strings.TrimSpace(stateDir)
	if target == "" {
		return RunLock{}, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return RunLock{}, fmt.Errorf("create state directory %s: %w", target, err)
	}

	lockDir := filepath.Join(target, runLockDirName)
	ownerPath := filepath.Join(lockDir, runLockOwnerFile)

	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if !os.IsExist(err) {
			return RunLock{}, fmt.Errorf("acquire run lock for %s: %w", target, err)
		}

		owner, stale := inspectLock(lockDir, ownerPath, ttl)
		if !stale {
			if owner != nil {
				return RunLock{}, fmt.Errorf("%w: %s (run=%s pid=%d created_at=%s host=%s)",
					ErrRunInProgress, target, owner.RunID, owner.PID, owner.CreatedAt, owner.Hostname)
			}
			return RunLock{}, fmt.Errorf("%w: %s", ErrRunInProgress, target)
		}

		logger.Logger().Warnf("breaking stale run lock in %s (older than %s)", target, ttl)
		if err := os.RemoveAll(lockDir); err != nil {
			return RunLock{}, fmt.Errorf("break stale run lock %s: %w", lockDir, err)
		}
		if err := os.Mkdir(lockDir, 0o755); err != nil {
			if os.IsExist(err) {
				return RunLock{}, fmt.Errorf("%w: %s", ErrRunInProgress, target)
			}
			return RunLock{}, fmt.Errorf("acquire run lock for %s: %w", target, err)
		}
	}

	owner := LockOwner{
		PID:       os.Getpid(),
		RunID:     runID,
		CreatedAt: now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := WriteJSON(ownerPath, owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return RunLock{}, fmt.Errorf("write run lock owner for %s: %w", target, err)
	}

	return RunLock{lockDir: lockDir}, nil
}

// inspectLock reads the owner of an existing lock and reports whether it
// has outlived ttl. Without a readable owner the directory mtime is used.
func inspectLock(lockDir, ownerPath string, ttl time.Duration) (*LockOwner, bool) {
	var owner LockOwner
	var created time.Time
	if err := ReadJSON(ownerPath, &owner); err == nil && owner.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, owner.CreatedAt); err == nil {
			created = t
		}
	}
	if created.IsZero() {
		info, err := os.Stat(lockDir)
		if err != nil {
			return nil, false
		}
		created = info.ModTime()
	}

	var o *LockOwner
	if owner.PID > 0 {
		o = &owner
	}
	if ttl <= 0 {
		return o, false
	}
	return o, now().Sub(created) > ttl
}

// Release removes the lock. Releasing a zero RunLock is a no-op.
func (l RunLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, runLockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release run lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
