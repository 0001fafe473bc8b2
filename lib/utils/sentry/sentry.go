package sentry

import (
	"fmt"
	"time"

	"clangraph/lib/env"

	"github.com/getsentry/sentry-go"
)

var initialized bool

// Init initializes Sentry from SENTRY_DSN. Returns false when no DSN is configured.
func Init(appName string, runId string, debug bool) bool {
	if env.SentryDSN == "" {
		return false
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              env.SentryDSN,
		Environment:      env.Environment,
		Release:          env.Release,
		Debug:            debug,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Tags == nil {
				event.Tags = make(map[string]string)
			}
			event.Tags["app"] = appName
			event.Tags["run_id"] = runId
			return event
		},
	}); err != nil {
		panic(err)
	}

	initialized = true
	return true
}

// Recover captures a panic, flushes, and re-panics
func Recover() {
	if err := recover(); err != nil {
		if initialized {
			sentry.CurrentHub().WithScope(func(scope *sentry.Scope) {
				scope.SetLevel(sentry.LevelFatal)
				scope.SetTag("panic", "true")
				if e, ok := err.(error); ok {
					sentry.CurrentHub().CaptureException(e)
				} else {
					sentry.CurrentHub().CaptureMessage(fmt.Sprintf("panic: %v", err))
				}
			})
			Flush()
		}
		panic(err)
	}
}

// CaptureError captures an error with the log key as a tag and the fields as extras
func CaptureError(level sentry.Level, logKey string, err error, fields map[string]any) {
	if !initialized {
		return
	}

	sentry.CurrentHub().WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		scope.SetTag("log_key", logKey)
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		sentry.CurrentHub().CaptureException(err)
	})
}

// Flush ensures all pending events are sent before program exits
func Flush() {
	if initialized {
		sentry.Flush(2 * time.Second)
	}
}
