package telemetry

import (
	"context"
	"testing"
)

func TestSetupNoopWhenDisabled(t *testing.T) {
	for _, tc := range []struct {
		endpoint string
		enabled  bool
	}{
		{"", true},
		{"http://localhost:4318", false},
	} {
		shutdown, err := Setup(context.Background(), "test", tc.endpoint, tc.enabled)
		if err != nil {
			t.Fatalf("Setup(%q, %v): %v", tc.endpoint, tc.enabled, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}
}

func TestSetupCreatesProvider(t *testing.T) {
	// Non-routable address: nothing is exported before shutdown.
	shutdown, err := Setup(context.Background(), "test", "http://192.0.2.1:4318", true)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
