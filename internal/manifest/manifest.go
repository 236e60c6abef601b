// Package manifest models the remote JSON document that lists automation
// driver builds per browser version and per release channel.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/autopost/botrunner/internal/config/validate"
)

var (
	// ErrFetch reports that the manifest could not be retrieved.
	ErrFetch = errors.New("manifest fetch failed")
	// ErrInvalid reports that the manifest body could not be parsed.
	ErrInvalid = errors.New("manifest is invalid")
	// ErrEmpty reports a manifest without any version entries.
	ErrEmpty = errors.New("manifest is empty")
)

// Download is one per-platform download of a product.
type Download struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// VersionEntry lists downloads for one browser version.
type VersionEntry struct {
	Version   string                `json:"version"`
	Revision  string                `json:"revision,omitempty"`
	Downloads map[string][]Download `json:"downloads,omitempty"`
}

// ChannelEntry lists downloads for the current build of a release channel.
type ChannelEntry struct {
	Channel   string                `json:"channel,omitempty"`
	Version   string                `json:"version,omitempty"`
	Revision  string                `json:"revision,omitempty"`
	Downloads map[string][]Download `json:"downloads,omitempty"`
}

// VersionManifest holds version entries in source order plus channels.
type VersionManifest struct {
	Timestamp string                  `json:"timestamp,omitempty"`
	Versions  []VersionEntry          `json:"versions,omitempty"`
	Channels  map[string]ChannelEntry `json:"channels,omitempty"`
}

// URLFor returns the URL listed for product on platform.
func (v VersionEntry) URLFor(product, platform string) (string, bool) {
	return lookup(v.Downloads, product, platform)
}

// URLFor returns the URL listed for product on platform.
func (c ChannelEntry) URLFor(product, platform string) (string, bool) {
	return lookup(c.Downloads, product, platform)
}

func lookup(downloads map[string][]Download, product, platform string) (string, bool) {
	for _, d := range downloads[product] {
		if d.Platform == platform {
			return d.URL, true
		}
	}
	return "", false
}

// Major returns the leading numeric component of a dotted version.
func Major(version string) string {
	version = strings.TrimSpace(version)
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}

// Parse validates data against the manifest schema and decodes it.
// Every returned error wraps ErrInvalid.
func Parse(data []byte) (*VersionManifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: empty document", ErrInvalid)
	}

	if err := validate.ValidateManifestJSON(trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var m VersionManifest
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := m.checkUniquePlatforms(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &m, nil
}

// checkUniquePlatforms enforces at most one URL per platform for each
// product of each entry.
func (m *VersionManifest) checkUniquePlatforms() error {
	for _, v := range m.Versions {
		if err := uniquePlatforms(v.Downloads); err != nil {
			return fmt.Errorf("version %s: %w", v.Version, err)
		}
	}
	for name, c := range m.Channels {
		if err := uniquePlatforms(c.Downloads); err != nil {
			return fmt.Errorf("channel %s: %w", name, err)
		}
	}
	return nil
}

func uniquePlatforms(downloads map[string][]Download) error {
	for product, list := range downloads {
		seen := make(map[string]bool, len(list))
		for _, d := range list {
			if seen[d.Platform] {
				return fmt.Errorf("duplicate %s download for platform %s", product, d.Platform)
			}
			seen[d.Platform] = true
		}
	}
	return nil
}

// Merge combines a versions document with a channels document. Version
// entries keep their order; channels from other override same-named ones.
func Merge(base, other *VersionManifest) *VersionManifest {
	out := &VersionManifest{}
	if base != nil {
		out.Timestamp = base.Timestamp
		out.Versions = append(out.Versions, base.Versions...)
		for k, v := range base.Channels {
			if out.Channels == nil {
				out.Channels = make(map[string]ChannelEntry)
			}
			out.Channels[k] = v
		}
	}
	if other != nil {
		if out.Timestamp == "" {
			out.Timestamp = other.Timestamp
		}
		out.Versions = append(out.Versions, other.Versions...)
		for k, v := range other.Channels {
			if out.Channels == nil {
				out.Channels = make(map[string]ChannelEntry)
			}
			out.Channels[k] = v
		}
	}
	return out
}
