package errors

import (
	"fmt"
	"testing"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	SetTelemetryReporter(nil)

	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown', got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic', got '%s'", ee.Category)
	}
}

func TestBuilderChain(t *testing.T) {
	t.Parallel()

	SetTelemetryReporter(nil)

	ee := Newf("colmap exited with status %d", 1).
		Component("reconstruction").
		Category(CategoryCommandExec).
		Context("step", "feature_extraction").
		Build()

	if ee.GetComponent() != "reconstruction" {
		t.Errorf("Expected component 'reconstruction', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryCommandExec {
		t.Errorf("Expected command-execution category, got '%s'", ee.Category)
	}
	if ee.GetContext()["step"] != "feature_extraction" {
		t.Errorf("Expected step context to survive Build, got %v", ee.GetContext())
	}
}

func TestIsMatchesCategory(t *testing.T) {
	t.Parallel()

	SetTelemetryReporter(nil)

	a := Newf("first").Category(CategoryState).Build()
	b := Newf("second").Category(CategoryState).Build()
	c := Newf("third").Category(CategoryLimit).Build()

	if !Is(a, b) {
		t.Error("Expected errors with the same category to match")
	}
	if Is(a, c) {
		t.Error("Expected errors with different categories not to match")
	}
}

func TestContextCopyIsolated(t *testing.T) {
	t.Parallel()

	SetTelemetryReporter(nil)

	ee := Newf("boom").Context("k", "v").Build()
	got := ee.GetContext()
	got["k"] = "mutated"

	if ee.GetContext()["k"] != "v" {
		t.Error("GetContext must return a copy, original context was mutated")
	}
}
