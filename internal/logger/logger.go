package logger

import (
	"log"
	"os"
	"strings"
)

// Level controls logging verbosity. Warnings and errors are always kept:
// unrecognized-type diagnostics and swallowed enrichment failures must stay
// discoverable.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

const (
	fatalLabel = "[FATAL] "
	errorLabel = "[ERROR] "
	warnLabel  = "[WARN ] "
	infoLabel  = "[INFO ] "
	debugLabel = "[DEBUG] "
)

var level = levelFromEnv()

func levelFromEnv() Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("VERTICA_LOG_LEVEL"))) {
	case "error":
		return LevelError
	case "warn":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// SetLevel overrides the level read from VERTICA_LOG_LEVEL.
func SetLevel(l Level) { level = l }

// CurrentLevel returns the active verbosity level.
func CurrentLevel() Level { return level }

func emit(min Level, label string, format string, args ...interface{}) {
	if level < min {
		return
	}
	log.Printf(label+format, args...)
}

// Fatal calls [log.Fatalf], adding a fatal label.
// Arguments are handled in the manner of [fmt.Printf].
func Fatal(format string, args ...interface{}) {
	log.Fatalf(fatalLabel+format, args...)
}

// Error prints to the standard logger, adding an error label.
func Error(format string, args ...interface{}) {
	emit(LevelError, errorLabel, format, args...)
}

// Warn prints to the standard logger, adding a warn label.
func Warn(format string, args ...interface{}) {
	emit(LevelWarn, warnLabel, format, args...)
}

// Info prints to the standard logger, adding an info label.
func Info(format string, args ...interface{}) {
	emit(LevelInfo, infoLabel, format, args...)
}

// Debug prints to the standard logger, adding a debug label.
func Debug(format string, args ...interface{}) {
	emit(LevelDebug, debugLabel, format, args...)
}
