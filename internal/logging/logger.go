// Package logging provides config-driven categorized logging for prismakit.
// Each category gets its own zap core; in debug mode every category writes
// to its own file under the logs directory, otherwise only warnings and
// errors reach stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup, config, shutdown
	CategoryBrowser    Category = "browser"    // Browser connection, page lifecycle
	CategoryAutomation Category = "automation" // D-Number search, account swap, approver pasting
	CategoryReminder   Category = "reminder"   // Reminder matching and display
	CategoryStore      Category = "store"      // Key-value storage
	CategoryApprovers  Category = "approvers"  // Approver table, favorites, selection
	CategoryMessaging  Category = "messaging"  // Message bus and HTTP endpoint
	CategoryClipboard  Category = "clipboard"  // Clipboard access
)

// Options mirrors config.LoggingConfig to avoid circular imports.
type Options struct {
	DebugMode  bool
	Level      string // debug, info, warn, error
	Format     string // json, text
	Dir        string
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	loggers   = make(map[Category]*Logger)
	files     []*os.File
	loggersMu sync.RWMutex
	opts      Options
	level     = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	ready     bool
)

// Initialize configures logging. Loggers handed out before Initialize are
// no-ops and are replaced on the next Get.
func Initialize(o Options) error {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	closeLocked()
	ready = false

	if o.DebugMode {
		if o.Dir == "" {
			return fmt.Errorf("logs directory required in debug mode")
		}
		if err := os.MkdirAll(o.Dir, 0o755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		if err := initAudit(o.Dir); err != nil {
			return err
		}
	}
	opts = o
	level.SetLevel(parseLevel(o.Level))
	ready = true
	return nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsDebugMode returns whether per-category file logging is enabled.
func IsDebugMode() bool {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if !ready {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

func encoder() zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Format == "json" {
		return zapcore.NewJSONEncoder(encCfg)
	}
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}
	if !categoryEnabledLocked(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	stderrLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.WarnLevel && level.Enabled(lvl)
	})
	cores := []zapcore.Core{zapcore.NewCore(encoder(), zapcore.Lock(os.Stderr), stderrLevel)}

	if opts.DebugMode {
		date := time.Now().Format("2006-01-02")
		logPath := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", date, category))
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		} else {
			files = append(files, file)
			cores = append(cores, zapcore.NewCore(encoder(), zapcore.AddSync(file), level))
		}
	}

	l := &Logger{
		category: category,
		sugar:    zap.New(zapcore.NewTee(cores...)).Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a child logger carrying structured key/value fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	closeLocked()
}

func closeLocked() {
	for _, l := range loggers {
		_ = l.sugar.Sync()
	}
	for _, f := range files {
		f.Close()
	}
	files = nil
	loggers = make(map[Category]*Logger)
	closeAudit()
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootWarn logs a warning to the boot category
func BootWarn(format string, args ...interface{}) { Get(CategoryBoot).Warn(format, args...) }

// BootError logs an error to the boot category
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

// Browser logs to the browser category
func Browser(format string, args ...interface{}) { Get(CategoryBrowser).Info(format, args...) }

// BrowserDebug logs debug to the browser category
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }

// BrowserWarn logs a warning to the browser category
func BrowserWarn(format string, args ...interface{}) { Get(CategoryBrowser).Warn(format, args...) }

// Automation logs to the automation category
func Automation(format string, args ...interface{}) { Get(CategoryAutomation).Info(format, args...) }

// AutomationDebug logs debug to the automation category
func AutomationDebug(format string, args ...interface{}) {
	Get(CategoryAutomation).Debug(format, args...)
}

// AutomationWarn logs a warning to the automation category
func AutomationWarn(format string, args ...interface{}) {
	Get(CategoryAutomation).Warn(format, args...)
}

// AutomationError logs an error to the automation category
func AutomationError(format string, args ...interface{}) {
	Get(CategoryAutomation).Error(format, args...)
}

// Reminder logs to the reminder category
func Reminder(format string, args ...interface{}) { Get(CategoryReminder).Info(format, args...) }

// ReminderDebug logs debug to the reminder category
func ReminderDebug(format string, args ...interface{}) { Get(CategoryReminder).Debug(format, args...) }

// ReminderWarn logs a warning to the reminder category
func ReminderWarn(format string, args ...interface{}) { Get(CategoryReminder).Warn(format, args...) }

// Store logs to the store category
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreWarn logs a warning to the store category
func StoreWarn(format string, args ...interface{}) { Get(CategoryStore).Warn(format, args...) }

// Approvers logs to the approvers category
func Approvers(format string, args ...interface{}) { Get(CategoryApprovers).Info(format, args...) }

// ApproversWarn logs a warning to the approvers category
func ApproversWarn(format string, args ...interface{}) { Get(CategoryApprovers).Warn(format, args...) }

// Messaging logs to the messaging category
func Messaging(format string, args ...interface{}) { Get(CategoryMessaging).Info(format, args...) }

// MessagingWarn logs a warning to the messaging category
func MessagingWarn(format string, args ...interface{}) { Get(CategoryMessaging).Warn(format, args...) }

// ClipboardWarn logs a warning to the clipboard category
func ClipboardWarn(format string, args ...interface{}) { Get(CategoryClipboard).Warn(format, args...) }

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
