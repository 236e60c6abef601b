package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/autopost/botrunner/internal/browser"
	"github.com/autopost/botrunner/internal/config"
	"github.com/autopost/botrunner/internal/runstore"
	utilsconfig "github.com/autopost/botrunner/internal/utils/config"
	"github.com/autopost/botrunner/internal/utils/system"
	"github.com/spf13/cobra"
)

// createDoctorCommand creates the doctor subcommand
func createDoctorCommand() *cobra.Command {
	var smoke bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report the state of the host, browser, driver and last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeDoctor(cmd, smoke)
		},
	}

	cmd.Flags().BoolVar(&smoke, "smoke", false, "Launch the browser headless and read its version over DevTools")
	return cmd
}

func executeDoctor(cmd *cobra.Command, smoke bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	cfg := config.Global()
	ci := botEnv != nil && botEnv.CI
	problems := 0

	report := func(name, value string, err error) {
		if err != nil {
			problems++
			fmt.Fprintf(out, "  %-16s FAIL %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "  %-16s %s\n", name, value)
	}

	fmt.Fprintln(out, "host:")
	platform, err := system.HostPlatform(ctx)
	report("platform", platform, err)
	report("ci", fmt.Sprint(ci), nil)

	fmt.Fprintln(out, "browser:")
	exe, err := browser.FindExecutable(cfg.Driver.BrowserPath)
	if err != nil {
		report("executable", "", err)
	} else {
		report("executable", exe.Path, nil)
		version, err := browser.DetectVersion(ctx, exe.Path)
		report("version", version, err)
		if smoke {
			v, err := browser.SmokeCheck(ctx, exe.Path, ci, time.Minute)
			report("devtools", v, err)
		}
	}

	fmt.Fprintln(out, "driver:")
	if info, err := os.Stat(cfg.Driver.InstallPath); err != nil {
		report("installed", "", err)
	} else {
		report("installed", fmt.Sprintf("%s (%s)", cfg.Driver.InstallPath, info.Mode().Perm()), nil)
	}

	fmt.Fprintln(out, "bot:")
	report("mode", cfg.Bot.Mode, nil)
	if botEnv != nil {
		if missing := botEnv.MissingCredentials(cfg.Bot.Mode); len(missing) > 0 {
			report("credentials", "", fmt.Errorf("missing %s", strings.Join(missing, ", ")))
		} else {
			report("credentials", "complete", nil)
		}
	}

	printLastRun(out, cfg)

	if problems > 0 {
		return fmt.Errorf("doctor found %d problem(s)", problems)
	}
	return nil
}

func printLastRun(out io.Writer, cfg *config.GlobalConfig) {
	fmt.Fprintln(out, "last run:")
	stateDir, err := stateDirOf(cfg)
	if err != nil {
		fmt.Fprintf(out, "  %v\n", err)
		return
	}
	last, err := runstore.ReadLastRun(stateDir)
	switch {
	case err != nil:
		fmt.Fprintf(out, "  %v\n", err)
	case last == nil:
		fmt.Fprintln(out, "  none recorded")
	default:
		status := "ok"
		if !last.Success {
			status = "failed: " + last.Error
		}
		fmt.Fprintf(out, "  %s at %s (%s) %s\n", last.RunID, last.StartedAt.Format(time.RFC3339), last.Trigger, status)
	}
}

func stateDirOf(cfg *config.GlobalConfig) (string, error) {
	return utilsconfig.NewConfigHelpers(cfg).StateDir()
}
