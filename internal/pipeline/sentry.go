package pipeline

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// ErrorReporter receives every stage failure
type ErrorReporter func(err *StageError)

// SentryReporter captures stage failures with Sentry. It does nothing
// until sentry.Init has been called.
func SentryReporter(err *StageError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("stage", err.Stage)
		scope.SetTag("run_id", err.RunID)
		scope.SetFingerprint([]string{"pipeline", err.Stage})
		sentry.CaptureException(err)
	})
}

// InitSentry configures the global Sentry client. An empty dsn leaves
// reporting disabled.
func InitSentry(dsn, release string) (flush func(), err error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		SampleRate:       1.0,
		AttachStacktrace: true,
	}); err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}
