package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/autopost/botrunner/internal/utils/logger"
	"github.com/schollz/progressbar/v3"
)

// Fetcher downloads archives to local disk.
type Fetcher struct {
	Client *http.Client
	// Progress receives the progress bar; nil disables it.
	Progress io.Writer
}

// New returns a Fetcher that draws progress on stderr.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{Client: client, Progress: os.Stderr}
}

// FetchFile downloads rawURL into destDir and returns the written path.
// The file name is the last path element of the URL. An existing file with
// the same name is overwritten.
func (f *Fetcher) FetchFile(ctx context.Context, rawURL string, destDir string) (string, error) {
	log := logger.Logger()

	name, err := fileName(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request for %s: %w", rawURL, err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: bad status: %s", rawURL, resp.Status)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating download directory %s: %w", destDir, err)
	}

	destPath := filepath.Join(destDir, name)
	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer out.Close()

	var w io.Writer = out
	// the bar needs a known size
	if f.Progress != nil && resp.ContentLength > 0 {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(f.Progress),
			progressbar.OptionSetDescription(fmt.Sprintf("downloading %s", name)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(f.Progress) }),
		)
		defer bar.Finish()
		w = io.MultiWriter(out, bar)
	}

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", destPath, err)
	}
	if written == 0 {
		return "", fmt.Errorf("downloading %s: empty response body", rawURL)
	}

	logger.RecordFetched(rawURL)
	log.Infof("downloaded %s (%d bytes) to %s", name, written, destPath)
	return destPath, nil
}

func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported download URL scheme %q", u.Scheme)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("download URL %q has no file name", rawURL)
	}
	return name, nil
}
