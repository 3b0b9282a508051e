package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Category loggers. Each category writes to its own rotated file and mirrors
// to stdout (stderr for the error logger). Before SetupLogger runs, all
// accessors fall back to a plain stderr text handler so packages can log
// safely from tests and early startup.

var (
	mu          sync.RWMutex
	application *slog.Logger
	discord     *slog.Logger
	database    *slog.Logger
	errorRaw    *slog.Logger

	rotators []*lumberjack.Logger

	fallback = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// SetupLogger initializes the category loggers under logDir. It is safe to
// call more than once; the last call wins.
func SetupLogger(logDir string) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	closeRotatorsLocked()

	application = newCategoryLogger(logDir, "application.log", os.Stdout)
	discord = newCategoryLogger(logDir, "discord_events.log", os.Stdout)
	database = newCategoryLogger(logDir, "database.log", os.Stdout)
	errorRaw = newCategoryLogger(logDir, "error.log", os.Stderr)

	slog.SetDefault(application)
	return nil
}

func newCategoryLogger(dir, name string, console io.Writer) *slog.Logger {
	rot := &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	rotators = append(rotators, rot)
	return slog.New(slog.NewTextHandler(io.MultiWriter(console, rot), nil))
}

// Close flushes and closes the underlying log files.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeRotatorsLocked()
	application, discord, database, errorRaw = nil, nil, nil, nil
}

func closeRotatorsLocked() {
	for _, r := range rotators {
		_ = r.Close()
	}
	rotators = nil
}

func ApplicationLogger() *slog.Logger { return get(&application) }
func DiscordLogger() *slog.Logger     { return get(&discord) }
func DatabaseLogger() *slog.Logger    { return get(&database) }
func ErrorLoggerRaw() *slog.Logger    { return get(&errorRaw) }

func get(l **slog.Logger) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if *l != nil {
		return *l
	}
	return fallback
}
