package main

import (
	"fmt"
	"os"

	"github.com/autopost/botrunner/internal/config"
	"github.com/autopost/botrunner/internal/manifest"
	"github.com/autopost/botrunner/internal/utils/logger"
	"github.com/spf13/cobra"
)

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	var manifestFile string

	validateCmd := &cobra.Command{
		Use:   "validate [flags] [CONFIG_FILE]",
		Short: "Validate the configuration and bot environment",
		Long: `Validate checks a botrunner.yml file against the configuration schema,
parses the bot environment variables and the schedule, and optionally
checks a local driver manifest file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeValidate(cmd, args, manifestFile)
		},
	}

	validateCmd.Flags().StringVar(&manifestFile, "manifest", "", "Also validate a driver manifest JSON file")
	return validateCmd
}

// executeValidate handles the validate command logic
func executeValidate(cmd *cobra.Command, args []string, manifestFile string) error {
	log := logger.Logger()

	cfg := config.Global()
	if len(args) == 1 {
		loaded, err := config.LoadGlobalConfig(args[0])
		if err != nil {
			return fmt.Errorf("configuration is invalid: %w", err)
		}
		cfg = loaded
		log.Infof("configuration %s is valid", args[0])
	}

	sched, err := newScheduler(cfg, botEnv, false)
	if err != nil {
		return fmt.Errorf("schedule is invalid: %w", err)
	}

	if manifestFile != "" {
		data, err := os.ReadFile(manifestFile)
		if err != nil {
			return err
		}
		m, err := manifest.Parse(data)
		if err != nil {
			return err
		}
		if len(m.Versions) == 0 {
			return fmt.Errorf("%s: %w", manifestFile, manifest.ErrEmpty)
		}
		log.Infof("manifest %s is valid: %d versions, %d channels", manifestFile, len(m.Versions), len(m.Channels))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "valid (mode %s, schedule %v)\n", cfg.Bot.Mode, sched.Specs())
	return nil
}
