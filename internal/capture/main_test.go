package capture

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies the capture loops do not leak goroutines.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}
