package shell

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/autopost/botrunner/internal/utils/logger"
)

// Executor runs shell command strings. Default is swapped out in tests.
type Executor interface {
	Exec(ctx context.Context, cmdStr string, env []string) (string, error)
	ExecStream(ctx context.Context, cmdStr string, dir string, env []string) (string, error)
}

// Default is the executor used by the package level helpers.
var Default Executor = &HostExecutor{}

// ExecCmd executes a command and returns its combined output.
func ExecCmd(ctx context.Context, cmdStr string, env []string) (string, error) {
	return Default.Exec(ctx, cmdStr, env)
}

// ExecCmdWithStream executes a command in dir and streams its output to the
// logger line by line. The collected stdout is returned.
func ExecCmdWithStream(ctx context.Context, cmdStr string, dir string, env []string) (string, error) {
	return Default.ExecStream(ctx, cmdStr, dir, env)
}

// GetOSEnvirons returns the system environment variables
func GetOSEnvirons() map[string]string {
	environ := make(map[string]string)
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			environ[parts[0]] = parts[1]
		}
	}
	return environ
}

// GetOSProxyEnvirons retrieves HTTP and HTTPS proxy environment variables
func GetOSProxyEnvirons() map[string]string {
	osEnv := GetOSEnvirons()
	proxyEnv := make(map[string]string)

	for key, value := range osEnv {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "http_proxy") ||
			strings.Contains(lower, "https_proxy") ||
			lower == "no_proxy" {
			proxyEnv[key] = value
		}
	}

	return proxyEnv
}

// getShell returns the preferred shell, falling back to /bin/sh if bash is not available
func getShell() string {
	shells := []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"}
	for _, shell := range shells {
		if _, err := os.Stat(shell); err == nil {
			return shell
		}
	}
	return "/bin/sh"
}

// IsCommandExist checks if a command exists on the host
func IsCommandExist(ctx context.Context, cmd string) bool {
	output, _ := ExecCmd(ctx, "command -v "+cmd, nil)
	return len(bytes.TrimSpace([]byte(output))) != 0
}

// HostExecutor runs commands through the host shell.
type HostExecutor struct{}

func (h *HostExecutor) Exec(ctx context.Context, cmdStr string, env []string) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec: [%s]", cmdStr)

	cmd := exec.CommandContext(ctx, getShell(), "-c", cmdStr)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", cmdStr, err)
	}
	if outputStr != "" {
		log.Debugf(outputStr)
	}
	return outputStr, nil
}

func (h *HostExecutor) ExecStream(ctx context.Context, cmdStr string, dir string, env []string) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec: [%s]", cmdStr)

	cmd := exec.CommandContext(ctx, getShell(), "-c", cmdStr)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stdout pipe for command %s: %w", cmdStr, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("failed to get stderr pipe for command %s: %w", cmdStr, err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start command %s: %w", cmdStr, err)
	}

	var (
		wg  sync.WaitGroup
		out strings.Builder
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				out.WriteString(str)
				out.WriteByte('\n')
				log.Infof(str)
			}
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			str := scanner.Text()
			if str != "" {
				log.Warnf(str)
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return out.String(), fmt.Errorf("failed to wait for command %s: %w", cmdStr, err)
	}

	return out.String(), nil
}

// MockCommand maps a command pattern to a canned result.
// Pattern is a regular expression matched against the full command string.
type MockCommand struct {
	Pattern string
	Output  string
	Error   error
}

// MockExecutor answers commands from a fixed table and records every call.
type MockExecutor struct {
	Commands []MockCommand

	mu      sync.Mutex
	calls   []string
	lastEnv []string
}

// NewMockExecutor returns a MockExecutor for the given table.
func NewMockExecutor(commands []MockCommand) *MockExecutor {
	return &MockExecutor{Commands: commands}
}

func (m *MockExecutor) Exec(_ context.Context, cmdStr string, env []string) (string, error) {
	return m.lookup(cmdStr, env)
}

func (m *MockExecutor) ExecStream(_ context.Context, cmdStr string, _ string, env []string) (string, error) {
	return m.lookup(cmdStr, env)
}

// Calls returns the commands executed so far.
func (m *MockExecutor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// LastEnv returns the extra environment of the most recent call.
func (m *MockExecutor) LastEnv() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lastEnv...)
}

func (m *MockExecutor) lookup(cmdStr string, env []string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, cmdStr)
	m.lastEnv = env
	m.mu.Unlock()

	for _, c := range m.Commands {
		if c.Pattern == cmdStr {
			return c.Output, c.Error
		}
		if re, err := regexp.Compile(c.Pattern); err == nil && re.MatchString(cmdStr) {
			return c.Output, c.Error
		}
	}
	return "", fmt.Errorf("unexpected command for mock executor: %s", cmdStr)
}
