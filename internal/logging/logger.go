// Package logging provides config-driven categorized file-based logging for agentcluster.
// Logs are written to .agentcluster/logs/ with separate files per category.
// Logging is controlled by DebugMode - when false, no logs are written.
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
	CategoryBoot        Category = "boot"        // Boot/initialization
	CategoryCampaign    Category = "campaign"    // Build orchestration, phase transitions
	CategoryAgents      Category = "agents"      // Agent registry mutations
	CategoryBuildLog    Category = "buildlog"    // Build log appends/clears
	CategoryAutopoiesis Category = "autopoiesis" // Dynamic tool generation
	CategoryMetrics     Category = "metrics"     // Counter updates
	CategoryIntent      Category = "intent"      // Intent compilation
	CategoryMCP         Category = "mcp"         // MCP catalog and protocol surface
	CategoryJournal     Category = "journal"     // Run journal (SQLite)
	CategoryServer      Category = "server"      // HTTP / WebSocket API
	CategoryConfig      Category = "config"      // Config load/reload
	CategoryConsole     Category = "console"     // Console directives
)

// Settings mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Settings struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// Logger wraps a zap sugared logger bound to one category.
// A Logger with a nil sugar is a no-op.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.Mutex
	logsDir   string
	settings  Settings
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	configMu  sync.RWMutex
)

// Initialize sets up the logging directory for the given workspace.
// Should be called once at startup.
func Initialize(workspace string, s Settings) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	configMu.Lock()
	settings = s
	logsDir = filepath.Join(workspace, ".agentcluster", "logs")
	level.SetLevel(parseLevel(s.Level))
	configMu.Unlock()

	CloseAll()

	if !s.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== agentcluster logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", level.Level())
	return nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
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

// IsCategoryEnabled reports whether category writes anything. Nothing is
// written outside debug mode; categories missing from the map are on.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()
	if !settings.DebugMode {
		return false
	}
	if on, listed := settings.Categories[string(category)]; listed {
		return on
	}
	return true
}

// Get returns the logger for category, opening its file on first use.
// Disabled categories, and everything before Initialize, get a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	configMu.RLock()
	dir, jsonFormat := logsDir, settings.JSONFormat
	configMu.RUnlock()
	if dir == "" {
		return &Logger{category: category}
	}

	l, err := openCategory(dir, category, jsonFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] %v\n", err)
		return &Logger{category: category}
	}
	loggers[category] = l
	return l
}

// openCategory creates <dir>/<date>_<category>.log and a zap core over it.
func openCategory(dir string, category Category, jsonFormat bool) (*Logger, error) {
	name := fmt.Sprintf("%s_%s.log", time.Now().Format(time.DateOnly), category)
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s log: %w", category, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)
	if !jsonFormat {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(file), level)
	return &Logger{
		category: category,
		file:     file,
		sugar:    zap.New(core).With(zap.String("cat", string(category))).Sugar(),
	}, nil
}

func (l *Logger) logf(lvl zapcore.Level, format string, args []interface{}) {
	if l.sugar == nil {
		return
	}
	switch lvl {
	case zapcore.DebugLevel:
		l.sugar.Debugf(format, args...)
	case zapcore.WarnLevel:
		l.sugar.Warnf(format, args...)
	case zapcore.ErrorLevel:
		l.sugar.Errorf(format, args...)
	default:
		l.sugar.Infof(format, args...)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.logf(zapcore.DebugLevel, format, args) }
func (l *Logger) Info(format string, args ...interface{})  { l.logf(zapcore.InfoLevel, format, args) }
func (l *Logger) Warn(format string, args ...interface{})  { l.logf(zapcore.WarnLevel, format, args) }
func (l *Logger) Error(format string, args ...interface{}) { l.logf(zapcore.ErrorLevel, format, args) }

// CloseAll flushes and closes every category file. Later Get calls reopen them.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for category, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		if l.file != nil {
			_ = l.file.Close()
		}
		delete(loggers, category)
	}
}

// Shorthands for the categories logged from many places.

func Boot(format string, args ...interface{})     { Get(CategoryBoot).Info(format, args...) }
func Campaign(format string, args ...interface{}) { Get(CategoryCampaign).Info(format, args...) }
func CampaignDebug(format string, args ...interface{}) {
	Get(CategoryCampaign).Debug(format, args...)
}
func Agents(format string, args ...interface{})      { Get(CategoryAgents).Info(format, args...) }
func AgentsDebug(format string, args ...interface{}) { Get(CategoryAgents).Debug(format, args...) }
func Autopoiesis(format string, args ...interface{}) { Get(CategoryAutopoiesis).Info(format, args...) }
func AutopoiesisDebug(format string, args ...interface{}) {
	Get(CategoryAutopoiesis).Debug(format, args...)
}
func Intent(format string, args ...interface{})      { Get(CategoryIntent).Info(format, args...) }
func IntentDebug(format string, args ...interface{}) { Get(CategoryIntent).Debug(format, args...) }
func Journal(format string, args ...interface{})     { Get(CategoryJournal).Info(format, args...) }
func Server(format string, args ...interface{})      { Get(CategoryServer).Info(format, args...) }
func ServerDebug(format string, args ...interface{}) { Get(CategoryServer).Debug(format, args...) }

// Timer logs how long an operation took.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing op.
func StartTimer(category Category, op string) *Timer {
	return &Timer{category: category, op: op, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if l := Get(t.category); l.sugar != nil {
		l.sugar.Debugw("timer", "op", t.op, "elapsed", elapsed)
	}
	return elapsed
}
