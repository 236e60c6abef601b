package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autopost/botrunner/internal/utils/logger"
	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Flag is one browser command line switch.
type Flag struct {
	Name  string
	Value interface{}
}

// Args renders flags as command line arguments.
func Args(flags []Flag) []string {
	args := make([]string, 0, len(flags))
	for _, f := range flags {
		switch v := f.Value.(type) {
		case bool:
			if v {
				args = append(args, "--"+f.Name)
			}
		default:
			args = append(args, fmt.Sprintf("--%s=%v", f.Name, v))
		}
	}
	return args
}

// LaunchFlags returns the headless profile. CI runners get the extra
// sandbox and debugging switches they need.
func LaunchFlags(ci bool) []Flag {
	flags := []Flag{
		{"headless", true},
		{"no-sandbox", true},
		{"disable-dev-shm-usage", true},
		{"disable-gpu", true},
		{"window-size", "1920,1080"},
	}
	if ci {
		flags = append(flags,
			Flag{"disable-extensions", true},
			Flag{"disable-setuid-sandbox", true},
			Flag{"remote-debugging-port", 9222},
		)
	}
	return flags
}

// LaunchOptions converts LaunchFlags into chromedp allocator options.
func LaunchOptions(exePath string, ci bool) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if exePath != "" {
		opts = append(opts, chromedp.ExecPath(exePath))
	}
	for _, f := range LaunchFlags(ci) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	return opts
}

// SmokeCheck launches the browser headless and returns the version it
// reports over the DevTools protocol.
func SmokeCheck(ctx context.Context, exePath string, ci bool, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, LaunchOptions(exePath, ci)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var product string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			_, product, _, _, _, err = cdpbrowser.GetVersion().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("browser smoke check failed: %w", err)
	}

	logger.Logger().Debugf("browser reported product %s", product)
	return ParseVersion(product)
}

// smokeCheck is swapped in tests.
var smokeCheck = SmokeCheck

// ResolveVersion returns override when set. Otherwise it asks the binary
// with --version and, failing that, over the DevTools protocol.
func ResolveVersion(ctx context.Context, exePath, override string, ci bool) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	v, err := DetectVersion(ctx, exePath)
	if err == nil {
		return v, nil
	}
	logger.Logger().Warnf("could not read version from %s --version: %v; trying DevTools", exePath, err)

	v, cdpErr := smokeCheck(ctx, exePath, ci, 0)
	if cdpErr != nil {
		return "", fmt.Errorf("detecting browser version: %w (devtools: %v)", err, cdpErr)
	}
	return v, nil
}
