package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls where and how verbosely the global logger writes.
type Config struct {
	Level string // debug, info, warn, error
	File  string // optional append-only log file
}

var (
	mu     sync.RWMutex
	global *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init sets the global logger once it has been built by the caller.
func Init(z *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	global = z
}

// Logger returns the global logger. Before Setup is called it falls back to
// a console logger at info level so early callers still get output.
func Logger() *zap.SugaredLogger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = zap.New(consoleCore(os.Stderr)).Sugar()
	}
	return global
}

// Setup builds the global logger from cfg. The returned function flushes
// and closes the log file and must be called before the process exits.
func Setup(cfg Config) (func(), error) {
	if err := SetLevel(cfg.Level); err != nil {
		return func() {}, err
	}

	cores := []zapcore.Core{consoleCore(os.Stderr)}
	var file *os.File

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return func() {}, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return func() {}, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		file = f
		cores = append(cores, fileCore(f))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	Init(z.Sugar())

	return func() {
		_ = z.Sync()
		if file != nil {
			_ = file.Close()
		}
	}, nil
}

// SetLevel changes the level of every core built by this package.
// An empty string leaves the current level untouched.
func SetLevel(lvl string) error {
	lvl = strings.TrimSpace(strings.ToLower(lvl))
	if lvl == "" {
		return nil
	}
	parsed, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", lvl, err)
	}
	level.SetLevel(parsed)
	return nil
}

// Level returns the current global level.
func Level() string {
	return level.Level().String()
}

func consoleCore(w *os.File) zapcore.Core {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(w), level)
}

// fileCore mirrors the console layout without colour codes so the artifact
// stays readable.
func fileCore(f *os.File) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), level)
}
