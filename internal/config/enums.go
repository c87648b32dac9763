package config

import (
	"log/slog"

	"git.home.luguber.info/inful/livepreview/internal/foundation/normalization"
)

// AutoRefreshMode selects which file changes reload connected browsers.
type AutoRefreshMode string

const (
	AutoRefreshOnAnyChange AutoRefreshMode = "onAnyChange"
	AutoRefreshOnSave      AutoRefreshMode = "onSave"
	AutoRefreshOff         AutoRefreshMode = "off"
)

var autoRefreshNormalizer = normalization.NewNormalizer("auto refresh mode", map[string]AutoRefreshMode{
	"onAnyChange": AutoRefreshOnAnyChange,
	"onSave":      AutoRefreshOnSave,
	"off":         AutoRefreshOff,
	"never":       AutoRefreshOff,
}, AutoRefreshOnAnyChange)

// ParseAutoRefreshMode accepts any casing or separator style ("on-save", "ON_SAVE", "on save").
// "never" is an alias for off.
func ParseAutoRefreshMode(raw string) (AutoRefreshMode, error) {
	return autoRefreshNormalizer.Parse(raw)
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer("log level", map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// SlogLevel maps the configured level onto slog.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer("log format", map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}
