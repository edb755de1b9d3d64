package obslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu           sync.RWMutex
	globalLogger = zap.NewNop()
)

// Options describes where and how log lines are written.
type Options struct {
	Level     string
	Format    string // legacy | json | console
	ToConsole bool
	ToFile    bool
	File      string
	Caller    bool

	// Console overrides stdout; used by the REPL to keep logs off the prompt line.
	Console io.Writer
}

// L returns the process-wide logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Set replaces the process-wide logger.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// Sync flushes buffered entries of the process-wide logger.
func Sync() { _ = L().Sync() }

// InitFromEnv builds Options from LOG_* variables and installs the logger.
func InitFromEnv() error {
	opts := Options{
		Level:     getenvDefault("LOG_LEVEL", "info"),
		Format:    getenvDefault("LOG_FORMAT", "legacy"),
		ToConsole: strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true"),
		ToFile:    strings.EqualFold(getenvDefault("LOG_TO_FILE", "false"), "true"),
		File:      getenvDefault("LOG_FILE", filepath.Join("logs", "checkmate.log")),
		Caller:    strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
	}
	return Init(opts)
}

// Init installs a logger built from opts.
func Init(opts Options) error {
	logger, err := New(opts)
	if err != nil {
		return err
	}
	Set(logger)
	return nil
}

// New builds a tee logger (console and/or file) without installing it.
func New(opts Options) (*zap.Logger, error) {
	level := parseLevel(opts.Level)
	format := normalizeFormat(opts.Format)

	var cores []zapcore.Core
	if opts.ToConsole {
		w := opts.Console
		if w == nil {
			w = os.Stdout
		}
		cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(w), level))
	}

	if opts.ToFile {
		path := strings.TrimSpace(opts.File)
		if path == "" {
			path = filepath.Join("logs", "checkmate.log")
		}
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(f), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if opts.Caller || format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func normalizeFormat(s string) string {
	f := strings.ToLower(strings.TrimSpace(s))
	switch f {
	case "json", "console", "legacy":
		return f
	default:
		return "legacy"
	}
}

func encoderFor(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig())
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
