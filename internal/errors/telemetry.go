// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"sync"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	telemetryReporter TelemetryReporter
	telemetryMutex    sync.RWMutex
)

// SetTelemetryReporter installs a reporter that receives every built
// EnhancedError. Pass nil to disable reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	telemetryMutex.Lock()
	defer telemetryMutex.Unlock()
	telemetryReporter = reporter
}

// reportToTelemetry forwards a built error to the active reporter, if any.
func reportToTelemetry(ee *EnhancedError) {
	telemetryMutex.RLock()
	reporter := telemetryReporter
	telemetryMutex.RUnlock()

	if reporter == nil || !reporter.IsEnabled() {
		return
	}
	reporter.ReportError(ee)
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))

		for key, value := range ee.GetContext() {
			scope.SetContext(key, map[string]any{"value": value})
		}

		scope.SetFingerprint([]string{ee.GetComponent(), string(ee.Category), ee.Err.Error()})
		sentry.CaptureException(ee.Err)
	})
}
