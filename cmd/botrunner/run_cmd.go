package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/autopost/botrunner/internal/config"
	"github.com/autopost/botrunner/internal/scheduler"
	"github.com/spf13/cobra"
)

// createRunCommand creates the run subcommand
func createRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot once now",
		Long: `Run performs one job run immediately: it takes the run lock, prepares the
driver in browser mode, runs the bot command and publishes the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner, err := newJobRunner(ctx, config.Global())
			if err != nil {
				return err
			}
			report, err := runner.Run(ctx, "manual")
			if report != nil && report.ArtifactDir != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "artifacts: %s\n", report.ArtifactDir)
			}
			return err
		},
	}
	return cmd
}

// createScheduleCommand creates the schedule subcommand
func createScheduleCommand() *cobra.Command {
	var immediate bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the bot at the scheduled times of day",
		Long: `Schedule keeps running and triggers a job run at each configured time
(SCHEDULE_TIMES or schedule.times, default 07:00, 13:00 and 19:00 UTC).
A run missed while the scheduler was down is caught up once on start.
RUN_DURATION bounds how long the scheduler stays up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.Global()
			runner, err := newJobRunner(ctx, cfg)
			if err != nil {
				return err
			}

			sched, err := newScheduler(cfg, botEnv, immediate || (botEnv != nil && botEnv.PostImmediately))
			if err != nil {
				return err
			}
			return sched.Run(ctx, func(ctx context.Context, trigger string) error {
				_, err := runner.Run(ctx, trigger)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&immediate, "now", false, "Also run once on start (same as POST_IMMEDIATELY=true)")
	return cmd
}

func newScheduler(cfg *config.GlobalConfig, env *config.BotEnv, immediate bool) (*scheduler.Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	stateDir, err := stateDirOf(cfg)
	if err != nil {
		return nil, err
	}

	opts := scheduler.Options{
		Times:     cfg.Schedule.Times,
		Cron:      cfg.Schedule.Cron,
		Location:  loc,
		StateDir:  stateDir,
		Immediate: immediate,
	}
	if env != nil {
		opts.Duration = env.RunDuration
	}
	return scheduler.New(opts)
}
