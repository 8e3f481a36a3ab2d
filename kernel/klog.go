package kernel

import (
	"fmt"
	"strings"
)

// Logger receives formatted kernel log lines. hal.Logger satisfies it.
type Logger interface {
	WriteLineString(s string)
}

// LogLevel orders log lines by severity; lower is more severe.
type LogLevel uint8

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l LogLevel) tag() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN "
	case LevelInfo:
		return "INFO "
	default:
		return "DEBUG"
	}
}

func (l LogLevel) String() string {
	return strings.TrimSpace(l.tag())
}

// ParseLogLevel accepts error, warn, info and debug in any case.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	}
	return LevelInfo, fmt.Errorf("kernel: unknown log level %q", s)
}

// FormatLogLine renders one kernel log line.
func FormatLogLine(tick uint64, task TaskID, level LogLevel, msg string) string {
	return fmt.Sprintf("[TICK:%08X] [T%d] [%s] %s", tick, task, level.tag(), msg)
}

func (k *Kernel) logf(level LogLevel, format string, args ...any) {
	k.logAs(k.current, level, format, args...)
}

// logAs logs on behalf of a task other than the current one.
func (k *Kernel) logAs(task TaskID, level LogLevel, format string, args ...any) {
	if k.log == nil || level > k.logLevel {
		return
	}
	k.log.WriteLineString(FormatLogLine(k.ticks, task, level, fmt.Sprintf(format, args...)))
}
