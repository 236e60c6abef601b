// Package installer downloads a driver archive, extracts it and installs the
// driver executable at a fixed path.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/autopost/botrunner/internal/archive"
	"github.com/autopost/botrunner/internal/utils/logger"
	"github.com/autopost/botrunner/internal/utils/system"
)

const (
	DefaultDriverName  = "chromedriver"
	DefaultInstallPath = "/usr/local/bin/chromedriver"
)

// ErrExecutableNotFound reports an archive without the driver executable.
var ErrExecutableNotFound = errors.New("executable not found after extraction")

// Downloader fetches a URL into a directory and returns the written file.
type Downloader interface {
	FetchFile(ctx context.Context, rawURL string, destDir string) (string, error)
}

// Options configure an Installer.
type Options struct {
	DriverName  string
	Platform    string
	InstallPath string
	// TempDir holds the download and extraction directories; empty uses
	// the system default.
	TempDir string
}

// Installer installs driver archives.
type Installer struct {
	downloader Downloader
	opts       Options
}

// New returns an Installer. Empty options fall back to the defaults.
func New(d Downloader, opts Options) *Installer {
	if opts.DriverName == "" {
		opts.DriverName = DefaultDriverName
	}
	if opts.InstallPath == "" {
		opts.InstallPath = DefaultInstallPath
	}
	return &Installer{downloader: d, opts: opts}
}

// InstallPath is where the driver ends up.
func (i *Installer) InstallPath() string {
	return i.opts.InstallPath
}

// Install downloads the archive at url and installs the driver executable.
// An existing file at the install path is replaced.
func (i *Installer) Install(ctx context.Context, url string) (string, error) {
	log := logger.Logger()

	if i.opts.TempDir != "" {
		if err := os.MkdirAll(i.opts.TempDir, 0755); err != nil {
			return "", fmt.Errorf("creating temp dir %s: %w", i.opts.TempDir, err)
		}
	}

	downloadDir, err := os.MkdirTemp(i.opts.TempDir, "driver-download-")
	if err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	defer os.RemoveAll(downloadDir)

	archivePath, err := i.downloader.FetchFile(ctx, url, downloadDir)
	if err != nil {
		return "", fmt.Errorf("downloading driver: %w", err)
	}

	extractDir, err := os.MkdirTemp(i.opts.TempDir, "driver-extract-")
	if err != nil {
		return "", fmt.Errorf("creating extraction directory: %w", err)
	}
	defer os.RemoveAll(extractDir)

	if _, err := archive.Extract(archivePath, extractDir); err != nil {
		return "", fmt.Errorf("extracting driver archive: %w", err)
	}

	exeName := system.ExecutableName(i.opts.DriverName, i.opts.Platform)
	exe, err := archive.FindFile(extractDir, exeName)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return "", fmt.Errorf("%w: %s in %s", ErrExecutableNotFound, exeName, filepath.Base(archivePath))
		}
		return "", err
	}

	if err := installFile(exe, i.opts.InstallPath); err != nil {
		return "", err
	}

	log.Infof("installed %s to %s", exeName, i.opts.InstallPath)
	return i.opts.InstallPath, nil
}

// installFile moves src to dst with mode 0755, copying when a rename is not
// possible (for example across filesystems).
func installFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating install directory: %w", err)
	}

	if err := os.Rename(src, dst); err != nil {
		logger.Logger().Debugf("rename %s -> %s failed, copying: %v", src, dst, err)
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}

	if err := os.Chmod(dst, 0755); err != nil {
		return fmt.Errorf("marking %s executable: %w", dst, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copying driver to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", dst, err)
	}
	return nil
}
