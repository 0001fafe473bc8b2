package logging

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"clangraph/lib/utils/sentry"
)

var writeMu sync.Mutex

// StructuredLogger writes "<ts> [LEVEL][PREFIX] -- KEY >> k=v ..." lines
type StructuredLogger struct {
	prefix string
}

// NewLogger creates a new logger with the given prefix
func NewLogger(prefix string) *StructuredLogger {
	return &StructuredLogger{prefix: prefix}
}

// formatLogfmtValue formats a value according to logfmt, quoting when needed
func formatLogfmtValue(v any) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case int:
		s = strconv.Itoa(val)
	case int32:
		s = strconv.FormatInt(int64(val), 10)
	case int64:
		s = strconv.FormatInt(val, 10)
	case uint32:
		s = strconv.FormatUint(uint64(val), 10)
	case uint64:
		s = strconv.FormatUint(val, 10)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(val)
	case time.Time:
		s = val.UTC().Format(time.RFC3339)
	case time.Duration:
		s = val.String()
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprintf("%v", v)
	}

	if s == "" {
		return `""`
	}
	if strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"' || r == '\\'
	}) {
		return strconv.Quote(s)
	}
	return s
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatLogfmtValue(fields[k]))
	}
	return strings.Join(parts, " ")
}

func (l *StructuredLogger) log(level string, key string, fields map[string]any) {
	line := fmt.Sprintf("%s [%s][%s] -- %s", time.Now().UTC().Format(time.RFC3339Nano), level, l.prefix, key)
	if len(fields) != 0 {
		line += " >> " + formatFields(fields)
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	switch level {
	case INFO, DEBUG:
		fmt.Fprintln(stdoutWriter, line)
	default:
		fmt.Fprintln(stderrWriter, line)
	}
}

// withError copies fields so callers can reuse their maps across log calls
func withError(err error, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if err != nil {
		out[ERROR] = err.Error()
	} else {
		out[ERROR] = "<nil>"
	}
	return out
}

func (l *StructuredLogger) Debug(key string, fields map[string]any) {
	if ShouldLog(Debug) {
		l.log(DEBUG, key, fields)
	}
}

func (l *StructuredLogger) Info(key string, fields map[string]any) {
	if ShouldLog(Info) {
		l.log(INFO, key, fields)
	}
}

func (l *StructuredLogger) Warn(key string, err error, fields map[string]any) {
	if ShouldLog(Warn) {
		l.log(WARN, key, withError(err, fields))
	}
}

func (l *StructuredLogger) Error(key string, err error, fields map[string]any) {
	fields = withError(err, fields)
	if ShouldLog(Error) {
		l.log(ERROR_LEVEL, key, fields)
	}
	if err != nil {
		sentry.CaptureError(Error, key, err, fields)
	}
}

func (l *StructuredLogger) Fatal(key string, err error, fields map[string]any) {
	fields = withError(err, fields)
	if ShouldLog(Error) {
		l.log(FATAL, key, fields)
	}
	if err != nil {
		sentry.CaptureError(Fatal, key, err, fields)
	}

	sentry.Flush()
	os.Exit(1)
}

// InitSentry initializes Sentry using the logger's prefix as the app name.
// Sentry is only enabled when SENTRY_DSN is set.
//
// Both returned functions should be deferred in main, flush first:
//
//	flushSentry, recoverSentry := logger.InitSentry(runId)
//	defer flushSentry()
//	defer recoverSentry()
func (l *StructuredLogger) InitSentry(runId string) (flushFunc func(), recoverFunc func()) {
	fields := map[string]any{
		"app":  l.prefix,
		RUN_ID: runId,
	}
	initialized := sentry.Init(l.prefix, runId, IsVerbose())
	if initialized {
		l.Debug("SENTRY_INITIALIZED", fields)
	} else {
		l.Debug("SENTRY_NOT_INITIALIZED", fields)
	}

	flushFunc = func() {
		if initialized {
			l.Debug("FLUSHING_SENTRY", fields)
			sentry.Flush()
		}
	}
	recoverFunc = sentry.Recover
	return
}
