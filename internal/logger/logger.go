// Package logger provides structured logging for API surface discovery.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents log levels.
type Level = zerolog.Level

// Log levels.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	Disabled   = zerolog.Disabled
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	zl zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      Level
	Pretty     bool // Use console writer (colored output)
	Output     io.Writer
	TimeFormat string
	Component  string // Component name (e.g., "scanner", "prober", "descriptor")

	// FilePath, when set, tees JSON logs into a rotating file.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Pretty:     true,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// New creates a new logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var output io.Writer = cfg.Output

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: "15:04:05",
		}
	}

	if cfg.FilePath != "" {
		output = zerolog.MultiLevelWriter(output, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
		})
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		Logger().
		Level(cfg.Level)

	if cfg.Component != "" {
		zl = zl.With().Str("component", cfg.Component).Logger()
	}

	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zl: l.zl.With().Str("component", component).Logger(),
	}
}

// WithField returns a new logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		zl: l.zl.With().Interface(key, value).Logger(),
	}
}

// WithURL returns a new logger with URL field.
func (l *Logger) WithURL(url string) *Logger {
	return &Logger{
		zl: l.zl.With().Str("url", url).Logger(),
	}
}

// WithScan returns a new logger tagged with a scan's ID and token.
func (l *Logger) WithScan(id string, token uint64) *Logger {
	return &Logger{
		zl: l.zl.With().Str("scan_id", id).Uint64("scan_token", token).Logger(),
	}
}

// WithError returns a new logger with error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		zl: l.zl.With().Err(err).Logger(),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

// ProbeEvent logs the outcome of one probe.
func (l *Logger) ProbeEvent(url, key string, statusCode int, duration time.Duration) {
	l.zl.Debug().
		Str("url", url).
		Str("probe_key", key).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("Probe completed")
}

// FailureEvent logs a dropped probe. Suppressed failures go to debug,
// unexpected ones to warn.
func (l *Logger) FailureEvent(err error, url, kind, errType string) {
	event := l.zl.Debug()
	if kind != "suppressed" {
		event = l.zl.Warn()
	}
	event.
		Err(err).
		Str("url", url).
		Str("failure", kind).
		Str("error_type", errType).
		Msg("Probe failed")
}

// DiscoveryEvent logs a discovered endpoint.
func (l *Logger) DiscoveryEvent(path, apiType, description string) {
	l.zl.Info().
		Str("path", path).
		Str("api_type", apiType).
		Str("description", description).
		Msg("Discovered endpoint")
}

// StatsEvent logs statistics.
func (l *Logger) StatsEvent(stats map[string]interface{}) {
	event := l.zl.Info()
	for k, v := range stats {
		event = event.Interface(k, v)
	}
	event.Msg("Scan statistics")
}

// ParseLevel parses a level string.
func ParseLevel(levelStr string) (Level, error) {
	return zerolog.ParseLevel(levelStr)
}
