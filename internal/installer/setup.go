package installer

import (
	"context"
	"fmt"

	"github.com/autopost/botrunner/internal/manifest"
	"github.com/autopost/botrunner/internal/resolver"
	"github.com/autopost/botrunner/internal/utils/logger"
)

// ManifestFetcher loads the driver manifest.
type ManifestFetcher interface {
	Fetch(ctx context.Context, src manifest.Source) (*manifest.VersionManifest, error)
}

// Setup wires browser detection, manifest lookup and installation into the
// driver preparation step of a job.
type Setup struct {
	Manifests ManifestFetcher
	Source    manifest.Source
	Resolver  *resolver.Resolver
	Installer *Installer
	Platform  string
	// BrowserVersion returns the installed browser version.
	BrowserVersion func(ctx context.Context) (string, error)
}

// Result describes a prepared driver.
type Result struct {
	BrowserVersion string
	Resolution     *resolver.Resolution
	// Path is empty when the driver was only resolved.
	Path string
}

// Resolve detects the browser version and picks the driver URL without
// downloading anything.
func (s *Setup) Resolve(ctx context.Context) (*Result, error) {
	log := logger.Logger()

	version, err := s.BrowserVersion(ctx)
	if err != nil {
		return nil, err
	}
	major := manifest.Major(version)
	log.Infof("browser version %s (major %s), platform %s", version, major, s.Platform)

	m, err := s.Manifests.Fetch(ctx, s.Source)
	if err != nil {
		return nil, err
	}

	res, err := s.Resolver.Resolve(major, m, s.Platform)
	if err != nil {
		return nil, err
	}
	return &Result{BrowserVersion: version, Resolution: res}, nil
}

// Run resolves and installs the driver.
func (s *Setup) Run(ctx context.Context) (*Result, error) {
	result, err := s.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	path, err := s.Installer.Install(ctx, result.Resolution.URL)
	if err != nil {
		return nil, fmt.Errorf("installing driver %s: %w", result.Resolution.Version, err)
	}
	result.Path = path
	return result, nil
}
