package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
)

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel maps a level name to a slog level; unknown names are info.
func ParseLevel(s string) slog.Level {
	if l, ok := logLevelMap[strings.ToLower(s)]; ok {
		return l
	}
	return slog.LevelInfo
}

// SetupLogger logs colored text to stderr and, when logFile is set, JSON to
// that file. The cleanup closes the file.
func SetupLogger(level, logFile string) (*slog.Logger, func() error) {
	lvl := ParseLevel(level)
	console := tint.NewHandler(os.Stderr, &tint.Options{Level: lvl})
	if logFile == "" {
		return slog.New(console), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l := slog.New(console)
		l.Error("Failed to open log file, using stderr only", "file", logFile, "err", err)
		return l, func() error { return nil }
	}

	return SetupLoggerWithWriters(os.Stderr, file, lvl), file.Close
}

// SetupLoggerWithWriters is SetupLogger over arbitrary writers.
func SetupLoggerWithWriters(console, file io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		tint.NewHandler(console, &tint.Options{Level: level, NoColor: true}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
	))
}
