package command

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joeycumines/go-htn/internal/config"
)

// logConfig holds resolved logging configuration for planning commands.
type logConfig struct {
	level   slog.Level
	json    bool
	logFile io.WriteCloser // nil if no file logging
}

// resolveLogConfig resolves log configuration from flags and settings.
// Flag values take precedence; settings are used when flags have their
// zero/default value. The caller must call Close when done.
func resolveLogConfig(flagPath, flagLevel string, settings config.Settings) (logConfig, error) {
	var lc logConfig

	// Resolve log level: flag → config → "info", with debug forcing debug.
	levelStr := flagLevel
	if levelStr == "" || levelStr == "info" {
		if settings.LogLevel != "" {
			levelStr = settings.LogLevel
		}
		if settings.Debug {
			levelStr = "debug"
		}
	}
	switch strings.ToLower(levelStr) {
	case "debug":
		lc.level = slog.LevelDebug
	case "info", "":
		lc.level = slog.LevelInfo
	case "warn":
		lc.level = slog.LevelWarn
	case "error":
		lc.level = slog.LevelError
	default:
		return lc, fmt.Errorf("invalid log level: %s", levelStr)
	}

	lc.json = settings.LogFormat == "json"

	// Resolve log path: flag → config → "".
	logPath := flagPath
	if logPath == "" {
		logPath = settings.LogFile
	}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return lc, fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}
		lc.logFile = f
	}

	return lc, nil
}

// logger builds the logger, writing to the log file if one was opened and to
// stderr otherwise.
func (lc logConfig) logger(stderr io.Writer) *slog.Logger {
	w := stderr
	if lc.logFile != nil {
		w = lc.logFile
	}
	opts := &slog.HandlerOptions{Level: lc.level}
	if lc.json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Close closes the log file, if any.
func (lc logConfig) Close() error {
	if lc.logFile == nil {
		return nil
	}
	return lc.logFile.Close()
}

// logFlags are the logging flags shared by the planning commands.
type logFlags struct {
	logFile  string
	logLevel string
}

func (f *logFlags) setupLogFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.logFile, "log-file", "", "Append logs to this file (default: stderr)")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// openLog resolves the logging flags against settings.
func (f *logFlags) openLog(settings config.Settings) (logConfig, error) {
	return resolveLogConfig(f.logFile, f.logLevel, settings)
}
