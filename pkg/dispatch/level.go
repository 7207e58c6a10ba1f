package dispatch

import (
	"fmt"
	"strings"
)

// Level is the severity attached to an error report.
type Level string

const (
	// LevelUnset means the caller did not pick a severity.
	LevelUnset    Level = ""
	LevelLog      Level = "log"
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Levels lists the valid severities, lowest first.
var Levels = []Level{LevelLog, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelCritical}

// Valid reports whether l is one of the six severities.
func (l Level) Valid() bool {
	switch l {
	case LevelLog, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelCritical:
		return true
	}
	return false
}

// Or returns l, or fallback when l is unset.
func (l Level) Or(fallback Level) Level {
	if l == LevelUnset {
		return fallback
	}
	return l
}

func (l Level) String() string {
	return string(l)
}

// ParseLevel parses a severity name. The empty string parses to LevelUnset.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return LevelUnset, nil
	case "log":
		return LevelLog, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "critical", "fatal":
		return LevelCritical, nil
	default:
		return LevelUnset, fmt.Errorf("unknown severity level %q", s)
	}
}
