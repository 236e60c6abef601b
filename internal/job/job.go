// Package job runs one invocation of the posting bot: driver preparation,
// the bot command itself, and log retention.
package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/autopost/botrunner/internal/artifact"
	"github.com/autopost/botrunner/internal/config"
	"github.com/autopost/botrunner/internal/installer"
	"github.com/autopost/botrunner/internal/runstore"
	"github.com/autopost/botrunner/internal/utils/logger"
	"github.com/autopost/botrunner/internal/utils/shell"
	"github.com/google/uuid"
)

// ErrBotFailed reports a non-zero exit of the bot command.
var ErrBotFailed = errors.New("bot command failed")

// DriverSetup prepares the automation driver.
type DriverSetup interface {
	Run(ctx context.Context) (*installer.Result, error)
}

// Options describe what a run does.
type Options struct {
	Mode       string
	Command    string
	WorkingDir string
	StateDir   string
	// LogFile is the append-only log retained after every run.
	LogFile string
	LockTTL time.Duration
	Env     *config.BotEnv
}

// Runner executes runs.
type Runner struct {
	opts      Options
	driver    DriverSetup
	artifacts *artifact.Store

	now   func() time.Time
	newID func() string
}

// Report summarises a finished run.
type Report struct {
	RunID       string
	Trigger     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Driver      *installer.Result
	ArtifactDir string
}

// NewRunner returns a Runner. driver may be nil when the bot runs in API
// mode; artifacts may be nil to skip log retention.
func NewRunner(opts Options, driver DriverSetup, artifacts *artifact.Store) *Runner {
	if opts.Env == nil {
		opts.Env = &config.BotEnv{}
	}
	return &Runner{
		opts:      opts,
		driver:    driver,
		artifacts: artifacts,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run performs one run. The log artifact and the last-run marker are written
// whether or not the run succeeds; only lock contention skips them.
func (r *Runner) Run(ctx context.Context, trigger string) (*Report, error) {
	log := logger.Logger()

	report := &Report{
		RunID:     r.newID(),
		Trigger:   trigger,
		StartedAt: r.now().UTC(),
	}

	lock, err := runstore.AcquireRunLock(r.opts.StateDir, report.RunID, r.opts.LockTTL)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warnf("failed to release run lock: %v", err)
		}
	}()

	log.Infof("run %s started (trigger: %s, mode: %s)", report.RunID, trigger, r.opts.Mode)

	runErr := r.execute(ctx, report)
	report.FinishedAt = r.now().UTC()

	if runErr != nil {
		log.Errorf("run %s failed: %v", report.RunID, runErr)
	} else {
		log.Infof("run %s finished in %s", report.RunID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	if r.artifacts != nil {
		dir, err := r.artifacts.Publish(r.opts.LogFile, artifact.RunInfo{
			RunID:      report.RunID,
			Trigger:    trigger,
			StartedAt:  report.StartedAt,
			FinishedAt: report.FinishedAt,
			Success:    runErr == nil,
			Error:      errText,
		})
		report.ArtifactDir = dir
		if err != nil {
			log.Warnf("log artifact incomplete: %v", err)
		}
	}

	if err := runstore.WriteLastRun(r.opts.StateDir, runstore.LastRun{
		RunID:      report.RunID,
		Trigger:    trigger,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Success:    runErr == nil,
		Error:      errText,
		Artifact:   report.ArtifactDir,
	}); err != nil {
		log.Warnf("failed to record last run: %v", err)
	}

	return report, runErr
}

func (r *Runner) execute(ctx context.Context, report *Report) error {
	log := logger.Logger()

	if missing := r.opts.Env.MissingCredentials(r.opts.Mode); len(missing) > 0 {
		log.Warnf("missing credentials for %s mode: %s", r.opts.Mode, strings.Join(missing, ", "))
	}

	driverPath := ""
	if r.opts.Mode == config.BotModeBrowser {
		if r.driver == nil {
			return fmt.Errorf("browser mode needs a driver setup")
		}
		res, err := r.driver.Run(ctx)
		if err != nil {
			return err
		}
		report.Driver = res
		driverPath = res.Path
	}

	env := r.opts.Env.Environ(r.opts.LogFile, driverPath)
	if _, err := shell.ExecCmdWithStream(ctx, r.opts.Command, r.opts.WorkingDir, env); err != nil {
		return fmt.Errorf("%w: %v", ErrBotFailed, err)
	}
	return nil
}
