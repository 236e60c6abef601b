package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/autopost/botrunner/internal/artifact"
	"github.com/autopost/botrunner/internal/config"
	"github.com/autopost/botrunner/internal/installer"
	"github.com/autopost/botrunner/internal/resolver"
	"github.com/autopost/botrunner/internal/runstore"
	"github.com/autopost/botrunner/internal/utils/shell"
)

type fakeDriver struct {
	calls int
	err   error
}

func (f *fakeDriver) Run(context.Context) (*installer.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &installer.Result{
		BrowserVersion: "115.0.5790.170",
		Resolution:     &resolver.Resolution{URL: "https://x/115", Source: resolver.SourceVersion},
		Path:           "/usr/local/bin/chromedriver",
	}, nil
}

type fixture struct {
	runner   *Runner
	driver   *fakeDriver
	exec     *shell.MockExecutor
	stateDir string
	artDir   string
	logFile  string
}

func newFixture(t *testing.T, mode string, botErr error) *fixture {
	t.Helper()

	work := t.TempDir()
	logFile := filepath.Join(work, "twitter_bot.log")
	if err := os.WriteFile(logFile, []byte("bot output\n"), 0644); err != nil {
		t.Fatal(err)
	}

	exec := shell.NewMockExecutor([]shell.MockCommand{
		{Pattern: "python twitter_bot.py", Error: botErr},
	})
	orig := shell.Default
	shell.Default = exec
	t.Cleanup(func() { shell.Default = orig })

	f := &fixture{
		driver:   &fakeDriver{},
		exec:     exec,
		stateDir: filepath.Join(work, "state"),
		artDir:   filepath.Join(work, "artifacts"),
		logFile:  logFile,
	}
	f.runner = NewRunner(Options{
		Mode:     mode,
		Command:  "python twitter_bot.py",
		StateDir: f.stateDir,
		LogFile:  logFile,
		LockTTL:  time.Hour,
		Env:      &config.BotEnv{CI: true},
	}, f.driver, &artifact.Store{Dir: f.artDir})

	n := 0
	f.runner.newID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	return f
}

func TestRunBrowserMode(t *testing.T) {
	f := newFixture(t, config.BotModeBrowser, nil)

	report, err := f.runner.Run(context.Background(), "manual")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.driver.calls != 1 {
		t.Errorf("driver setup ran %d times", f.driver.calls)
	}
	if report.Driver == nil || report.Driver.Path != "/usr/local/bin/chromedriver" {
		t.Errorf("unexpected driver result %+v", report.Driver)
	}

	env := strings.Join(f.exec.LastEnv(), "\n")
	for _, want := range []string{
		"WEBDRIVER_PATH=/usr/local/bin/chromedriver",
		"GITHUB_ACTIONS=true",
		"LOG_FILE=" + f.logFile,
	} {
		if !strings.Contains(env, want) {
			t.Errorf("bot env missing %s:\n%s", want, env)
		}
	}

	data, err := os.ReadFile(filepath.Join(f.artDir, "run-1", "twitter_bot.log"))
	if err != nil || string(data) != "bot output\n" {
		t.Errorf("log artifact = %q, %v", data, err)
	}

	last, err := runstore.ReadLastRun(f.stateDir)
	if err != nil || last == nil || !last.Success || last.RunID != "run-1" {
		t.Errorf("last run = %+v, %v", last, err)
	}
	if _, err := os.Stat(filepath.Join(f.stateDir, ".run.lock")); !os.IsNotExist(err) {
		t.Error("run lock must be released")
	}
}

func TestRunAPIModeSkipsDriver(t *testing.T) {
	f := newFixture(t, config.BotModeAPI, nil)
	if _, err := f.runner.Run(context.Background(), "schedule"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.driver.calls != 0 {
		t.Error("api mode must not prepare a driver")
	}
	if strings.Contains(strings.Join(f.exec.LastEnv(), "\n"), "WEBDRIVER_PATH") {
		t.Error("api mode must not pass a driver path")
	}
}

func TestRunPublishesLogOnFailure(t *testing.T) {
	t.Run("driver resolution fails", func(t *testing.T) {
		f := newFixture(t, config.BotModeBrowser, nil)
		f.driver.err = fmt.Errorf("resolving: %w", resolver.ErrNoStableFallback)

		report, err := f.runner.Run(context.Background(), "schedule")
		if !errors.Is(err, resolver.ErrNoStableFallback) {
			t.Fatalf("expected ErrNoStableFallback, got %v", err)
		}
		if len(f.exec.Calls()) != 0 {
			t.Error("bot must not run without a driver")
		}
		info, err := artifact.ReadRunInfo(report.ArtifactDir)
		if err != nil {
			t.Fatalf("artifact not published: %v", err)
		}
		if info.Success || !strings.Contains(info.Error, "no stable fallback") {
			t.Errorf("unexpected run info %+v", info)
		}
	})

	t.Run("bot command fails", func(t *testing.T) {
		f := newFixture(t, config.BotModeAPI, errors.New("exit status 1"))

		_, err := f.runner.Run(context.Background(), "schedule")
		if !errors.Is(err, ErrBotFailed) {
			t.Fatalf("expected ErrBotFailed, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(f.artDir, "run-1", "twitter_bot.log")); err != nil {
			t.Errorf("log must be published after a failed run: %v", err)
		}
		last, _ := runstore.ReadLastRun(f.stateDir)
		if last == nil || last.Success {
			t.Errorf("last run should record failure: %+v", last)
		}
	})
}

func TestRunRefusesOverlap(t *testing.T) {
	f := newFixture(t, config.BotModeAPI, nil)

	lock, err := runstore.AcquireRunLock(f.stateDir, "other", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = f.runner.Run(context.Background(), "schedule")
	if !errors.Is(err, runstore.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if len(f.exec.Calls()) != 0 {
		t.Error("bot must not run while another run holds the lock")
	}
	if last, _ := runstore.ReadLastRun(f.stateDir); last != nil {
		t.Errorf("overlapping run must not overwrite the marker: %+v", last)
	}
}
