package main

import (
	"encoding/json"
	"fmt"

	"github.com/autopost/botrunner/internal/config"
	"github.com/autopost/botrunner/internal/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resolveOutput is the --json form of the resolve result
type resolveOutput struct {
	BrowserVersion string `json:"browserVersion"`
	Platform       string `json:"platform"`
	URL            string `json:"url"`
	Source         string `json:"source"`
	DriverVersion  string `json:"driverVersion"`
	Channel        string `json:"channel,omitempty"`
	InstallPath    string `json:"installPath,omitempty"`
}

func addDriverFlags(fs *pflag.FlagSet, flags *driverFlags) {
	fs.StringVar(&flags.browserVersion, "browser-version", "", "Browser version or major version (skips detection)")
	fs.StringVar(&flags.platform, "platform", "", "Manifest platform id: linux64, mac-arm64, mac-x64, win32, win64 (default: host)")
	fs.StringVar(&flags.manifestFile, "manifest-file", "", "Read the manifest from a local JSON file instead of the network")
	fs.BoolVar(&flags.noFallback, "no-fallback", false, "Fail instead of falling back to the Stable channel")
}

// createResolveCommand creates the resolve subcommand
func createResolveCommand() *cobra.Command {
	var flags driverFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve [flags]",
		Short: "Print the driver download URL matching the installed browser",
		Long: `Resolve detects the installed browser version, fetches the driver
manifest and prints the download URL of the first driver build with the
same major version. Without a match the Stable channel build is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := newDriverSetup(cmd.Context(), config.Global(), flags)
			if err != nil {
				return err
			}
			res, err := setup.Resolve(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				out := resolveOutput{
					BrowserVersion: res.BrowserVersion,
					Platform:       setup.Platform,
					URL:            res.Resolution.URL,
					Source:         string(res.Resolution.Source),
					DriverVersion:  res.Resolution.Version,
					Channel:        res.Resolution.Channel,
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Resolution.URL)
			return nil
		},
	}

	addDriverFlags(cmd.Flags(), &flags)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full resolution as JSON")
	return cmd
}

// createInstallDriverCommand creates the install-driver subcommand
func createInstallDriverCommand() *cobra.Command {
	var flags driverFlags

	cmd := &cobra.Command{
		Use:   "install-driver [flags]",
		Short: "Download and install the driver matching the installed browser",
		Long: `Install-driver resolves the driver like 'resolve', downloads the archive,
extracts the driver executable and installs it at the configured path with
mode 0755. An existing driver is replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := newDriverSetup(cmd.Context(), config.Global(), flags)
			if err != nil {
				return err
			}
			res, err := setup.Run(cmd.Context())
			if err != nil {
				return err
			}
			logger.Logger().Infof("driver %s (%s) ready for browser %s",
				res.Resolution.Version, res.Resolution.Source, res.BrowserVersion)
			fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			return nil
		},
	}

	addDriverFlags(cmd.Flags(), &flags)
	cmd.Flags().StringVar(&flags.installPath, "install-path", "", "Where to install the driver (overrides config)")
	return cmd
}
