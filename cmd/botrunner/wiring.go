package main

import (
	"context"
	"fmt"
	"os"

	"github.com/autopost/botrunner/internal/artifact"
	"github.com/autopost/botrunner/internal/browser"
	"github.com/autopost/botrunner/internal/config"
	"github.com/autopost/botrunner/internal/fetcher"
	"github.com/autopost/botrunner/internal/installer"
	"github.com/autopost/botrunner/internal/job"
	"github.com/autopost/botrunner/internal/manifest"
	"github.com/autopost/botrunner/internal/resolver"
	utilsconfig "github.com/autopost/botrunner/internal/utils/config"
	"github.com/autopost/botrunner/internal/utils/network"
	"github.com/autopost/botrunner/internal/utils/system"
)

// driverFlags are the per-command overrides of the driver config
type driverFlags struct {
	browserVersion string
	platform       string
	installPath    string
	manifestFile   string
	noFallback     bool
}

// fileManifests serves a manifest from a local file
type fileManifests struct {
	path string
}

func (f fileManifests) Fetch(_ context.Context, _ manifest.Source) (*manifest.VersionManifest, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", manifest.ErrFetch, err)
	}
	return manifest.Parse(data)
}

// newDriverSetup wires detection, resolution and installation from the
// loaded configuration
var newDriverSetup = func(ctx context.Context, cfg *config.GlobalConfig, flags driverFlags) (*installer.Setup, error) {
	d := cfg.Driver
	if flags.browserVersion != "" {
		d.BrowserVersion = flags.browserVersion
	}
	if flags.platform != "" {
		d.Platform = flags.platform
	}
	if flags.installPath != "" {
		d.InstallPath = flags.installPath
	}
	if flags.noFallback {
		d.AllowFallback = false
	}

	timeout, err := cfg.DriverTimeout()
	if err != nil {
		return nil, err
	}

	platform := d.Platform
	if platform == "" {
		if platform, err = system.HostPlatform(ctx); err != nil {
			return nil, fmt.Errorf("detecting host platform: %w", err)
		}
	}

	client := network.NewSecureHTTPClient(timeout)

	var manifests installer.ManifestFetcher = manifest.NewFetcher(client)
	if flags.manifestFile != "" {
		manifests = fileManifests{path: flags.manifestFile}
	}

	ci := botEnv != nil && botEnv.CI
	return &installer.Setup{
		Manifests: manifests,
		Source: manifest.Source{
			URL:         d.ManifestURL,
			VersionsURL: d.VersionsURL,
			ChannelsURL: d.ChannelsURL,
		},
		Resolver: resolver.New(resolver.Options{
			Product:         d.Product,
			FallbackChannel: d.FallbackChannel,
			DisableFallback: !d.AllowFallback,
		}),
		Installer: installer.New(fetcher.New(client), installer.Options{
			DriverName:  d.Name,
			Platform:    platform,
			InstallPath: d.InstallPath,
			TempDir:     cfg.TempDir,
		}),
		Platform: platform,
		BrowserVersion: func(ctx context.Context) (string, error) {
			if d.BrowserVersion != "" {
				return browser.ResolveVersion(ctx, "", d.BrowserVersion, ci)
			}
			exe, err := browser.FindExecutable(d.BrowserPath)
			if err != nil {
				return "", err
			}
			return browser.ResolveVersion(ctx, exe.Path, "", ci)
		},
	}, nil
}

// newJobRunner builds the runner for one or many runs
func newJobRunner(ctx context.Context, cfg *config.GlobalConfig) (*job.Runner, error) {
	helpers := utilsconfig.NewConfigHelpers(cfg)

	stateDir, err := helpers.CreateStateDir()
	if err != nil {
		return nil, err
	}
	artifactDir, err := helpers.CreateArtifactDir()
	if err != nil {
		return nil, err
	}
	workingDir, err := helpers.BotWorkingDir()
	if err != nil {
		return nil, err
	}
	logFile, err := helpers.LogFile()
	if err != nil {
		return nil, err
	}
	lockTTL, err := cfg.LockTTL()
	if err != nil {
		return nil, err
	}

	var driver job.DriverSetup
	if cfg.Bot.Mode == config.BotModeBrowser {
		setup, err := newDriverSetup(ctx, cfg, driverFlags{})
		if err != nil {
			return nil, err
		}
		driver = setup
	}

	return job.NewRunner(job.Options{
		Mode:       cfg.Bot.Mode,
		Command:    cfg.Bot.Command,
		WorkingDir: workingDir,
		StateDir:   stateDir,
		LogFile:    logFile,
		LockTTL:    lockTTL,
		Env:        botEnv,
	}, driver, &artifact.Store{Dir: artifactDir, Retain: cfg.ArtifactRetain}), nil
}
