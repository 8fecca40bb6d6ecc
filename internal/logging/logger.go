// Package logging provides categorized structured logging for starsorter.
// Every subsystem logs through its own category so a deployment can silence
// noisy areas (placement traces, watcher events) without losing the rest.
// Until Initialize is called all loggers are no-ops, which keeps library use
// and tests quiet by default.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and config
	CategoryRefData   Category = "refdata"   // Reference data loading and validation
	CategoryWatcher   Category = "watcher"   // Hot reload
	CategoryScoring   Category = "scoring"   // Weight and rule scorers
	CategoryPlacement Category = "placement" // Placement scorer and sparsifier
	CategoryClassify  Category = "classify"  // Classification and tie handling
	CategoryEngine    Category = "engine"    // Strategy dispatch and batches
	CategoryCLI       Category = "cli"       // Command line surface
	CategoryAudit     Category = "audit"     // Classification audit trail
)

// AllCategories lists every category in display order.
var AllCategories = []Category{
	CategoryBoot, CategoryRefData, CategoryWatcher, CategoryScoring,
	CategoryPlacement, CategoryClassify, CategoryEngine, CategoryCLI, CategoryAudit,
}

// Config selects level, encoding, destination and enabled categories.
type Config struct {
	Level string `yaml:"level" json:"level"` // debug, info, warn, error
	// Format is "console" or "json".
	Format string `yaml:"format" json:"format"`
	// Output is a file path; empty or "stderr" writes to stderr.
	Output string `yaml:"output" json:"output"`
	// Categories disables individual categories when set to false. Missing
	// categories are enabled.
	Categories map[string]bool `yaml:"categories" json:"categories"`
}

// Logger is a category-scoped logger with printf-style and key-value
// methods.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
	closeFn    func()
)

// Initialize builds the process logger from cfg. It may be called again to
// reconfigure; previously returned loggers keep their old core.
func Initialize(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "ts"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zc.Encoding = "json"
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	out := cfg.Output
	if out == "" {
		out = "stderr"
	}
	zc.OutputPaths = []string{out}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	install(logger, cfg.Categories)

	Get(CategoryBoot).Infow("logging initialized", "level", level.String(), "format", zc.Encoding, "output", out)
	return nil
}

// SetLogger installs an already-built zap logger, typically an observer in
// tests. Passing nil restores the no-op logger.
func SetLogger(l *zap.Logger, enabled map[string]bool) {
	if l == nil {
		l = zap.NewNop()
	}
	install(l, enabled)
}

func install(l *zap.Logger, enabled map[string]bool) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	categories = enabled
	loggers = make(map[Category]*Logger)
	closeFn = func() { _ = l.Sync() }
}

// ParseLevel maps a level name onto a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	enabled, exists := categories[string(category)]
	return !exists || enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	core := base
	if enabled, exists := categories[string(category)]; exists && !enabled {
		core = zap.NewNop()
	}
	l := &Logger{category: category, sugar: core.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...any) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...any) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Debugw logs a debug message with key-value pairs.
func (l *Logger) Debugw(msg string, kv ...any) { l.sugar.Debugw(msg, kv...) }

// Infow logs an informational message with key-value pairs.
func (l *Logger) Infow(msg string, kv ...any) { l.sugar.Infow(msg, kv...) }

// Warnw logs a warning with key-value pairs.
func (l *Logger) Warnw(msg string, kv ...any) { l.sugar.Warnw(msg, kv...) }

// Errorw logs an error with key-value pairs.
func (l *Logger) Errorw(msg string, kv ...any) { l.sugar.Errorw(msg, kv...) }

// With returns a child logger carrying kv on every entry.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(kv...)}
}

// Zap exposes the underlying logger for callers that want typed fields.
func (l *Logger) Zap() *zap.Logger { return l.sugar.Desugar() }

// Sync flushes buffered entries (call at shutdown)
func Sync() {
	mu.RLock()
	fn := closeFn
	mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Stderr is a fallback for messages that must reach the user even when
// logging is not initialized.
func Stderr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...any) { Get(CategoryBoot).Info(format, args...) }

// RefData logs to the refdata category
func RefData(format string, args ...any) { Get(CategoryRefData).Info(format, args...) }

// RefDataDebug logs debug to the refdata category
func RefDataDebug(format string, args ...any) { Get(CategoryRefData).Debug(format, args...) }

// Watcher logs to the watcher category
func Watcher(format string, args ...any) { Get(CategoryWatcher).Info(format, args...) }

// WatcherDebug logs debug to the watcher category
func WatcherDebug(format string, args ...any) { Get(CategoryWatcher).Debug(format, args...) }

// ScoringDebug logs debug to the scoring category
func ScoringDebug(format string, args ...any) { Get(CategoryScoring).Debug(format, args...) }

// PlacementDebug logs debug to the placement category
func PlacementDebug(format string, args ...any) { Get(CategoryPlacement).Debug(format, args...) }

// ClassifyDebug logs debug to the classify category
func ClassifyDebug(format string, args ...any) { Get(CategoryClassify).Debug(format, args...) }

// Engine logs to the engine category
func Engine(format string, args ...any) { Get(CategoryEngine).Info(format, args...) }

// EngineDebug logs debug to the engine category
func EngineDebug(format string, args ...any) { Get(CategoryEngine).Debug(format, args...) }
