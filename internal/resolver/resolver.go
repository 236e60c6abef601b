// Package resolver selects the automation driver download that matches an
// installed browser's major version.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/autopost/botrunner/internal/manifest"
	"github.com/autopost/botrunner/internal/utils/logger"
)

const (
	DefaultProduct         = "chromedriver"
	DefaultFallbackChannel = "Stable"

	// nullSentinel is what shell tooling prints for a missing JSON value.
	nullSentinel = "null"
)

var (
	// ErrInvalidVersion reports a browser major version that is not a number.
	ErrInvalidVersion = errors.New("invalid browser major version")
	// ErrNoVersionMatch reports that no entry matched and fallback is disabled.
	ErrNoVersionMatch = errors.New("no version match")
	// ErrNoStableFallback reports that neither a version entry nor the
	// fallback channel yielded a usable URL.
	ErrNoStableFallback = errors.New("no stable fallback")
)

// Source tells where a resolved URL came from.
type Source string

const (
	SourceVersion Source = "version"
	SourceChannel Source = "channel"
)

// Resolution is the outcome of a successful lookup.
type Resolution struct {
	URL     string
	Source  Source
	Version string // manifest version of the matched entry
	Channel string // set when Source is SourceChannel
}

// Options tune a Resolver. Zero values select the defaults.
type Options struct {
	Product         string
	FallbackChannel string
	DisableFallback bool
}

// Resolver resolves driver URLs from a manifest.
type Resolver struct {
	opts Options
}

// New returns a Resolver with opts applied over the defaults.
func New(opts Options) *Resolver {
	if opts.Product == "" {
		opts.Product = DefaultProduct
	}
	if opts.FallbackChannel == "" {
		opts.FallbackChannel = DefaultFallbackChannel
	}
	return &Resolver{opts: opts}
}

// Resolve uses the default options.
func Resolve(browserMajorVersion string, m *manifest.VersionManifest, platform string) (*Resolution, error) {
	return New(Options{}).Resolve(browserMajorVersion, m, platform)
}

// Resolve picks the download URL for platform. Version entries whose
// version starts with "<major>." are tried in manifest order and the first
// usable URL wins. Otherwise the fallback channel is consulted.
func (r *Resolver) Resolve(browserMajorVersion string, m *manifest.VersionManifest, platform string) (*Resolution, error) {
	log := logger.Logger()

	major, err := normalizeMajor(browserMajorVersion)
	if err != nil {
		return nil, err
	}
	if m == nil || len(m.Versions) == 0 {
		return nil, fmt.Errorf("%w: no version entries", manifest.ErrEmpty)
	}

	prefix := major + "."
	matched := 0
	for _, entry := range m.Versions {
		if !strings.HasPrefix(entry.Version, prefix) {
			continue
		}
		matched++
		url, ok := entry.URLFor(r.opts.Product, platform)
		if !ok || !usable(url) {
			log.Debugf("version %s has no %s download for %s", entry.Version, r.opts.Product, platform)
			continue
		}
		log.Infof("matched %s %s for browser major %s: %s", r.opts.Product, entry.Version, major, url)
		return &Resolution{URL: url, Source: SourceVersion, Version: entry.Version}, nil
	}

	log.Warnf("no %s version entry for browser major %s on %s (%d entries with that major)",
		r.opts.Product, major, platform, matched)

	if r.opts.DisableFallback {
		return nil, fmt.Errorf("%w: %s for browser major %s on %s", ErrNoVersionMatch, r.opts.Product, major, platform)
	}

	channel, ok := m.Channels[r.opts.FallbackChannel]
	if ok {
		url, found := channel.URLFor(r.opts.Product, platform)
		if found && usable(url) {
			log.Infof("falling back to %s channel %s %s: %s", r.opts.FallbackChannel, r.opts.Product, channel.Version, url)
			return &Resolution{
				URL:     url,
				Source:  SourceChannel,
				Version: channel.Version,
				Channel: r.opts.FallbackChannel,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: browser major %s has no %s entry and channel %q has no usable URL for %s",
		ErrNoStableFallback, major, r.opts.Product, r.opts.FallbackChannel, platform)
}

// normalizeMajor accepts "115" or a full version such as "115.0.5790.170".
func normalizeMajor(v string) (string, error) {
	major := manifest.Major(v)
	if major == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	for _, r := range major {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidVersion, v)
		}
	}
	return major, nil
}

func usable(url string) bool {
	url = strings.TrimSpace(url)
	return url != "" && url != nullSentinel
}
