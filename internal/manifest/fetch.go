package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/autopost/botrunner/internal/utils/logger"
)

// maxManifestBytes caps the body read from the manifest endpoint.
const maxManifestBytes = 64 << 20

// Source describes where the manifest lives. Either URL alone, or
// VersionsURL and ChannelsURL, which are fetched and merged. A set URL
// takes precedence and the split URLs are ignored.
type Source struct {
	URL         string
	VersionsURL string
	ChannelsURL string
}

func (s Source) urls() []string {
	if s.URL != "" {
		return []string{s.URL}
	}
	var urls []string
	for _, u := range []string{s.VersionsURL, s.ChannelsURL} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Fetcher retrieves and parses manifests over HTTP.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a Fetcher using client.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client}
}

// Fetch retrieves the manifest described by src. Transport and status
// failures wrap ErrFetch; body problems wrap ErrInvalid.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (*VersionManifest, error) {
	log := logger.Logger()

	urls := src.urls()
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no manifest URL configured", ErrFetch)
	}

	var merged *VersionManifest
	for _, u := range urls {
		log.Infof("fetching driver manifest %s", u)
		m, err := f.fetchOne(ctx, u)
		if err != nil {
			return nil, err
		}
		log.Debugf("manifest %s: %d versions, %d channels", u, len(m.Versions), len(m.Channels))
		merged = Merge(merged, m)
	}
	return merged, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) (*VersionManifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request for %s: %v", ErrFetch, url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: bad status: %s", ErrFetch, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, url, err)
	}

	m, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return m, nil
}
