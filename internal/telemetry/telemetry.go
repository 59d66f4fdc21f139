// Package telemetry wires optional Sentry error reporting into the
// application. When disabled in the configuration nothing is initialized
// and error reporting stays local.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
)

// Init configures Sentry from settings and installs the error reporter.
// It is a no-op when telemetry is disabled.
func Init(settings *conf.Settings) error {
	if !settings.Sentry.Enabled {
		errors.SetTelemetryReporter(nil)
		return nil
	}

	if settings.Sentry.DSN == "" {
		return errors.Newf("sentry enabled but dsn not configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         settings.Sentry.DSN,
		Release:     fmt.Sprintf("sitelenz@%s", settings.Version),
		Environment: environment(settings),
		// Errors only, no performance tracing
		TracesSampleRate: 0,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	return nil
}

// Flush drains buffered events before shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

func environment(settings *conf.Settings) string {
	if settings.Debug || settings.WebServer.Debug {
		return "development"
	}
	return "production"
}
