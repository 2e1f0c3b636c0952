package main

import (
	"log"
	"strings"
)

// logLevel orders the viewer's log severities.
type logLevel int

const (
	logLevelDebug logLevel = iota
	logLevelInfo
	logLevelWarn
	logLevelError
)

func (l logLevel) String() string {
	switch l {
	case logLevelDebug:
		return "debug"
	case logLevelInfo:
		return "info"
	case logLevelWarn:
		return "warn"
	case logLevelError:
		return "error"
	default:
		return "unknown"
	}
}

// parseLogLevel parses a level name case-insensitively; unknown names mean info.
func parseLogLevel(level string) logLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logLevelDebug
	case "info":
		return logLevelInfo
	case "warn", "warning":
		return logLevelWarn
	case "error":
		return logLevelError
	default:
		return logLevelInfo
	}
}

// leveledLogger writes through the standard log package with a level prefix.
// It satisfies sim.Logger.
type leveledLogger struct {
	level logLevel
}

func newLeveledLogger(level string) *leveledLogger {
	return &leveledLogger{level: parseLogLevel(level)}
}

func (l *leveledLogger) enabled(level logLevel) bool { return level >= l.level }

func (l *leveledLogger) Debugf(format string, v ...any) {
	if l.enabled(logLevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func (l *leveledLogger) Infof(format string, v ...any) {
	if l.enabled(logLevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

func (l *leveledLogger) Warnf(format string, v ...any) {
	if l.enabled(logLevelWarn) {
		log.Printf("[WARN] "+format, v...)
	}
}

func (l *leveledLogger) Errorf(format string, v ...any) {
	if l.enabled(logLevelError) {
		log.Printf("[ERROR] "+format, v...)
	}
}
