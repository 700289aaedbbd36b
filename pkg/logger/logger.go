// Package logger wires log/slog with optional file rotation.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the process-wide logger. Init must be called before use.
var Log *slog.Logger

// Config controls the handler, level and output of the logger.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Init sets up the global logger with JSON output on stdout.
func Init(level string) {
	InitWithConfig(Config{Level: level, Format: "json", Output: "stdout"})
}

// InitWithConfig sets up the global logger from a full configuration.
// When file output is requested the log file is rotated by lumberjack.
func InitWithConfig(cfg Config) {
	var lvl slog.Level
	switch cfg.Level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var writer io.Writer
	switch cfg.Output {
	case "stderr":
		writer = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			cfg.FilePath = "logs/cargodist.log"
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			writer = os.Stdout
		} else {
			writer = &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}
		}
	default:
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	Log = slog.New(handler)
}

// WithCargo returns a logger scoped to one cargo type.
func WithCargo(cargo uint8) *slog.Logger {
	return Log.With("cargo", cargo)
}

// WithJob returns a logger scoped to one solver job.
func WithJob(jobID string) *slog.Logger {
	return Log.With("job_id", jobID)
}

// Debug logs at debug level through the global logger.
func Debug(msg string, args ...any) { Log.Debug(msg, args...) }

// Info logs at info level through the global logger.
func Info(msg string, args ...any) { Log.Info(msg, args...) }

// Warn logs at warn level through the global logger.
func Warn(msg string, args ...any) { Log.Warn(msg, args...) }

// Error logs at error level through the global logger.
func Error(msg string, args ...any) { Log.Error(msg, args...) }
