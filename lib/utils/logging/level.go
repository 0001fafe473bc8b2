package logging

import (
	"flag"
	"strings"
	"sync"

	"clangraph/lib/env"
)

var (
	verbose   bool
	logLevel  string
	parseOnce sync.Once

	verboseFlag      *bool
	verboseLongFlag  *bool
	logLevelFlag     *string
	logLevelLongFlag *string
)

// logLevelPriority maps log levels to their numeric priority (higher = more important)
var logLevelPriority = map[string]int{
	Debug: 0,
	Info:  1,
	Warn:  2,
	Error: 3,
	// fatal is not configurable - it is shown whenever error is
}

func init() {
	logLevel = Info
	if isValidLogLevel(env.LogLevel) {
		logLevel = strings.ToLower(env.LogLevel)
	}

	verboseFlag = flag.Bool("v", false, "enable verbose (debug) logging")
	verboseLongFlag = flag.Bool("verbose", false, "enable verbose (debug) logging")
	logLevelFlag = flag.String("log", "", "set log level (debug, info, warn, error)")
	logLevelLongFlag = flag.String("log-level", "", "set log level (debug, info, warn, error)")
}

// ParseFlags parses the command line and applies the logging flags
// (-v, -verbose, -log, -log-level). Call it instead of flag.Parse() in main,
// after every application flag has been defined.
//
// Precedence, lowest first: LOG_LEVEL env, -v/-verbose, -log/-log-level.
func ParseFlags() {
	parseOnce.Do(func() {
		if !flag.Parsed() {
			flag.Parse()
		}

		if *verboseFlag || *verboseLongFlag {
			SetVerbose(true)
		}

		for _, level := range []string{*logLevelFlag, *logLevelLongFlag} {
			if isValidLogLevel(level) {
				SetLogLevel(level)
				break
			}
		}
	})
}

func isValidLogLevel(level string) bool {
	if level == "" {
		return false
	}
	_, ok := logLevelPriority[strings.ToLower(level)]
	return ok
}

// IsVerbose returns true if debug logging is enabled
func IsVerbose() bool {
	return verbose || logLevel == Debug
}

// GetLogLevel returns the current log level
func GetLogLevel() string {
	return logLevel
}

// SetLogLevel programmatically sets the log level. Invalid levels are ignored.
func SetLogLevel(level string) {
	if isValidLogLevel(level) {
		logLevel = strings.ToLower(level)
		verbose = logLevel == Debug
	}
}

// SetVerbose programmatically enables/disables verbose logging
func SetVerbose(enabled bool) {
	verbose = enabled
	if enabled {
		logLevel = Debug
	}
}

// ShouldLog checks if a given log level should be logged based on current log level
func ShouldLog(level string) bool {
	return logLevelPriority[level] >= logLevelPriority[logLevel]
}
