// Package browser locates the installed Chromium-based browser, reads its
// version and builds the headless launch profile used for automation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/autopost/botrunner/internal/utils/logger"
	"github.com/autopost/botrunner/internal/utils/shell"
)

// Kind identifies the type of Chromium-based browser.
type Kind string

const (
	KindChrome   Kind = "chrome"
	KindChromium Kind = "chromium"
	KindEdge     Kind = "edge"
	KindCustom   Kind = "custom"
)

// Executable is a browser binary found on the host.
type Executable struct {
	Kind Kind
	Path string
}

// ErrNotFound reports that no supported browser is installed.
var ErrNotFound = errors.New("browser not found")

var (
	// goos and fileExists are swapped in tests.
	goos       = runtime.GOOS
	fileExists = func(path string) bool {
		info, err := os.Stat(path)
		return err == nil && !info.IsDir()
	}

	versionPattern = regexp.MustCompile(`\b(\d+)(\.\d+){1,3}\b`)
)

type candidate struct {
	kind Kind
	path string
}

// FindExecutable returns customPath when set, otherwise the first known
// browser location that exists on this host.
func FindExecutable(customPath string) (*Executable, error) {
	if customPath != "" {
		if !fileExists(customPath) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, customPath)
		}
		return &Executable{Kind: KindCustom, Path: customPath}, nil
	}

	for _, c := range candidates() {
		if fileExists(c.path) {
			logger.Logger().Debugf("found %s browser at %s", c.kind, c.path)
			return &Executable{Kind: c.kind, Path: c.path}, nil
		}
	}
	return nil, fmt.Errorf("%w: no Chrome or Chromium installation on %s", ErrNotFound, goos)
}

func candidates() []candidate {
	switch goos {
	case "darwin":
		home := os.Getenv("HOME")
		return []candidate{
			{KindChrome, "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"},
			{KindChrome, filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome")},
			{KindChromium, "/Applications/Chromium.app/Contents/MacOS/Chromium"},
			{KindEdge, "/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"},
		}
	case "windows":
		programFiles := os.Getenv("ProgramFiles")
		if programFiles == "" {
			programFiles = `C:\Program Files`
		}
		programFilesX86 := os.Getenv("ProgramFiles(x86)")
		if programFilesX86 == "" {
			programFilesX86 = `C:\Program Files (x86)`
		}
		list := []candidate{
			{KindChrome, filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe")},
			{KindChrome, filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe")},
			{KindEdge, filepath.Join(programFilesX86, "Microsoft", "Edge", "Application", "msedge.exe")},
		}
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			list = append([]candidate{
				{KindChrome, filepath.Join(local, "Google", "Chrome", "Application", "chrome.exe")},
			}, list...)
		}
		return list
	default:
		return []candidate{
			{KindChrome, "/usr/bin/google-chrome"},
			{KindChrome, "/usr/bin/google-chrome-stable"},
			{KindChrome, "/opt/google/chrome/chrome"},
			{KindChromium, "/usr/bin/chromium"},
			{KindChromium, "/usr/bin/chromium-browser"},
			{KindChromium, "/snap/bin/chromium"},
			{KindEdge, "/usr/bin/microsoft-edge"},
		}
	}
}

// ParseVersion extracts the first dotted version from browser output such
// as "Google Chrome 115.0.5790.170".
func ParseVersion(output string) (string, error) {
	v := versionPattern.FindString(output)
	if v == "" {
		return "", fmt.Errorf("no version in browser output %q", strings.TrimSpace(output))
	}
	return v, nil
}

// DetectVersion runs "<exe> --version" and returns the reported version.
func DetectVersion(ctx context.Context, exePath string) (string, error) {
	out, err := shell.ExecCmd(ctx, fmt.Sprintf("%q --version", exePath), nil)
	if err != nil {
		return "", fmt.Errorf("reading browser version: %w", err)
	}
	return ParseVersion(out)
}

// IsCI reports whether the process runs inside the CI runner.
func IsCI() bool {
	return strings.EqualFold(os.Getenv("GITHUB_ACTIONS"), "true")
}
