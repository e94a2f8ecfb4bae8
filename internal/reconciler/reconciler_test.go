package reconciler

import "testing"

func TestIntervalConstants(t *testing.T) {
	if healthInterval <= 0 {
		t.Error("healthInterval must be positive")
	}
	if idleSweepInterval <= 0 {
		t.Error("idleSweepInterval must be positive")
	}
}
