package main

import (
	"fmt"
	"os"

	"github.com/autopost/botrunner/internal/config"
	utilsconfig "github.com/autopost/botrunner/internal/utils/config"
	"github.com/autopost/botrunner/internal/utils/logger"
	"github.com/spf13/cobra"
)

// Version information, set at build time with -ldflags
var (
	Version   = "dev"
	BuildDate = "unknown"
	CommitSHA = "unknown"
)

// Global flags
var (
	configFile string
	logLevel   string
	envFile    string
)

// Loaded state shared by the subcommands
var (
	botEnv     *config.BotEnv
	logCleanup = func() {}
)

func main() {
	rootCmd := createRootCommand()

	err := rootCmd.Execute()
	logCleanup()
	if err != nil {
		code := exitCode(err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(code)
	}
}

// createRootCommand builds the command tree
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "botrunner",
		Short: "Prepares the browser driver and runs the scheduled posting bot",
		Long: `botrunner prepares the browser-automation environment for the posting
bot, runs the bot on a fixed daily schedule or on demand, and keeps the
bot log as a retained artifact after every run.

The driver is resolved from the browser's major version against the
Chrome for Testing manifest, falling back to the Stable channel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to botrunner.yml (default: search ./, ~/.config/botrunner, /etc/botrunner)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with the bot environment")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(createResolveCommand())
	rootCmd.AddCommand(createInstallDriverCommand())
	rootCmd.AddCommand(createRunCommand())
	rootCmd.AddCommand(createScheduleCommand())
	rootCmd.AddCommand(createValidateCommand())
	rootCmd.AddCommand(createDoctorCommand())
	rootCmd.AddCommand(createVersionCommand())

	attachLoggingHooks(rootCmd)
	return rootCmd
}

// attachLoggingHooks installs the setup hook on every subcommand. Cobra only
// runs the nearest persistent pre-run, so each command gets its own copy.
func attachLoggingHooks(root *cobra.Command) {
	for _, cmd := range root.Commands() {
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			continue
		}
		cmd.PersistentPreRunE = initRuntime
	}
}

// resolveRequestedLogLevel returns the level asked for on the command line,
// or "" when the config decides
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Changed {
		if v, err := cmd.Flags().GetBool("verbose"); err == nil && v {
			return "debug"
		}
	}
	return ""
}

// initRuntime loads the environment and configuration and sets up logging
func initRuntime(cmd *cobra.Command, _ []string) error {
	explicitEnv := cmd.Flags().Changed("env-file")
	if err := config.LoadEnvFile(envFile, explicitEnv); err != nil {
		return err
	}

	env, err := config.ReadBotEnv(os.LookupEnv)
	if err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	botEnv = env

	cfg, err := config.LoadGlobalConfig(configFile)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(env)
	if lvl := resolveRequestedLogLevel(cmd); lvl != "" {
		cfg.Logging.Level = lvl
	}
	config.SetGlobal(cfg)

	logFile, err := utilsconfig.NewConfigHelpers(cfg).LogFile()
	if err != nil {
		return fmt.Errorf("resolving log file: %w", err)
	}
	cleanup, err := logger.Setup(logger.Config{Level: cfg.Logging.Level, File: logFile})
	if err != nil {
		return err
	}
	logCleanup = cleanup

	logger.Logger().Debugf("botrunner %s (%s), config level %s, log file %q", Version, CommitSHA, cfg.Logging.Level, logFile)
	return nil
}
