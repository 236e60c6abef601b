package system

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/autopost/botrunner/internal/utils/logger"
	"github.com/autopost/botrunner/internal/utils/shell"
)

var (
	OsReleaseFile = "/etc/os-release"
	// goos is swapped in tests.
	goos = runtime.GOOS
)

// Platform identifiers used by the driver manifest.
const (
	PlatformLinux64  = "linux64"
	PlatformMacArm64 = "mac-arm64"
	PlatformMacX64   = "mac-x64"
	PlatformWin32    = "win32"
	PlatformWin64    = "win64"
)

// GetHostOsInfo returns the host name, version and machine architecture.
func GetHostOsInfo(ctx context.Context) (map[string]string, error) {
	log := logger.Logger()
	var hostOsInfo = map[string]string{
		"name":    "",
		"version": "",
		"arch":    "",
	}

	output, err := shell.ExecCmd(ctx, "uname -m", nil)
	if err != nil {
		log.Errorf("Failed to get host architecture: %v", err)
		return hostOsInfo, fmt.Errorf("failed to get host architecture: %w", err)
	}
	hostOsInfo["arch"] = strings.TrimSpace(output)

	// os-release is optional; macOS hosts do not have it
	file, err := os.Open(OsReleaseFile)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "NAME=") {
				hostOsInfo["name"] = trimReleaseValue(line)
			} else if strings.HasPrefix(line, "VERSION_ID=") {
				hostOsInfo["version"] = trimReleaseValue(line)
			}
		}
	} else {
		hostOsInfo["name"] = goos
	}

	log.Debugf("Detected OS info: %s %s %s", hostOsInfo["name"], hostOsInfo["version"], hostOsInfo["arch"])
	return hostOsInfo, nil
}

func trimReleaseValue(line string) string {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(parts[1]), "\"")
}

// HostPlatform maps the running host to a manifest platform identifier.
func HostPlatform(ctx context.Context) (string, error) {
	info, err := GetHostOsInfo(ctx)
	if err != nil {
		return "", err
	}
	return ManifestPlatform(goos, info["arch"])
}

// ManifestPlatform maps an OS and machine architecture to the platform
// identifier used by the driver manifest.
func ManifestPlatform(osName, arch string) (string, error) {
	arch = strings.ToLower(strings.TrimSpace(arch))

	switch osName {
	case "linux":
		switch arch {
		case "x86_64", "amd64":
			return PlatformLinux64, nil
		}
		return "", fmt.Errorf("unsupported linux architecture: %s", arch)
	case "darwin":
		switch arch {
		case "arm64", "aarch64":
			return PlatformMacArm64, nil
		case "x86_64", "amd64":
			return PlatformMacX64, nil
		}
		return "", fmt.Errorf("unsupported macOS architecture: %s", arch)
	case "windows":
		switch arch {
		case "x86_64", "amd64":
			return PlatformWin64, nil
		case "i386", "i686", "x86", "386":
			return PlatformWin32, nil
		}
		return "", fmt.Errorf("unsupported windows architecture: %s", arch)
	default:
		return "", fmt.Errorf("unsupported host OS: %s", osName)
	}
}

// ExecutableName returns name with the platform executable suffix.
func ExecutableName(name, platform string) string {
	if strings.HasPrefix(platform, "win") && !strings.HasSuffix(name, ".exe") {
		return name + ".exe"
	}
	return name
}
