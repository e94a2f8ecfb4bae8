package worker

import (
	"testing"
	"time"

	"github.com/kandev/raworc/internal/session"
)

func TestUnknownTaskTypeError(t *testing.T) {
	err := unknownTaskType(session.TaskType("bogus_task"))
	want := "unknown task type: bogus_task"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestSleepOrStop_ReturnsOnStop(t *testing.T) {
	stopCh := make(chan struct{})
	close(stopCh)

	start := time.Now()
	sleepOrStop(stopCh, time.Minute)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected sleepOrStop to return immediately on closed stopCh, took %s", elapsed)
	}
}

func TestSleepOrStop_ReturnsAfterDuration(t *testing.T) {
	stopCh := make(chan struct{})

	start := time.Now()
	sleepOrStop(stopCh, 10*time.Millisecond)
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("expected sleepOrStop to wait at least 10ms, took %s", elapsed)
	}
}

func TestPacingConstants(t *testing.T) {
	if idleInterval <= 0 || errorBackoff <= 0 {
		t.Fatal("pacing constants must be positive")
	}
	if errorBackoff <= idleInterval {
		t.Error("errorBackoff should be longer than idleInterval to avoid hot-looping on a persistent claim failure")
	}
}
