package round

import (
	"testing"
	"time"
)

func TestStartFromIdle(t *testing.T) {
	c := New(1800*time.Second, nil)
	now := time.Now()

	status, err := c.Start(t.Context(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Running {
		t.Fatalf("expected RUNNING, got %s", status)
	}
	if !c.IsTradingOpen(now) {
		t.Error("expected trading open right after start")
	}
}

func TestStartIsNoOpWhileRunning(t *testing.T) {
	c := New(1800*time.Second, nil)
	now := time.Now()
	c.Start(t.Context(), now)
	snapBefore := c.Snapshot(now)

	c.Start(t.Context(), now.Add(5*time.Second))
	snapAfter := c.Snapshot(now.Add(5 * time.Second))

	if !snapBefore.Deadline.Equal(snapAfter.Deadline) {
		t.Errorf("expected deadline unchanged by redundant start, got %v vs %v", snapBefore.Deadline, snapAfter.Deadline)
	}
}

func TestPauseRejectedFromIdle(t *testing.T) {
	c := New(1800*time.Second, nil)
	_, err := c.Pause(t.Context(), time.Now())
	if err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPauseResumePreservesDeadline(t *testing.T) {
	c := New(1800*time.Second, nil)
	t0 := time.Now()
	c.Start(t.Context(), t0)

	pauseAt := t0.Add(100 * time.Second)
	status, err := c.Pause(t.Context(), pauseAt)
	if err != nil || status != Paused {
		t.Fatalf("expected PAUSED, got %s (err=%v)", status, err)
	}

	resumeAt := t0.Add(500 * time.Second)
	status, err = c.Resume(t.Context(), resumeAt)
	if err != nil || status != Running {
		t.Fatalf("expected RUNNING, got %s (err=%v)", status, err)
	}

	wantDeadline := resumeAt.Add(1700 * time.Second)
	snap := c.Snapshot(resumeAt)
	if !snap.Deadline.Equal(wantDeadline) {
		t.Errorf("expected deadline %v, got %v", wantDeadline, snap.Deadline)
	}
	if !c.IsTradingOpen(wantDeadline.Add(-time.Second)) {
		t.Error("expected trading open just before new deadline")
	}
	if c.IsTradingOpen(wantDeadline.Add(time.Second)) {
		t.Error("expected trading closed just after new deadline")
	}
}

func TestDeadlineElapsedTransitionsToEnded(t *testing.T) {
	c := New(10*time.Second, nil)
	t0 := time.Now()
	c.Start(t.Context(), t0)

	later := t0.Add(11 * time.Second)
	if c.IsTradingOpen(later) {
		t.Error("expected trading closed after deadline")
	}
	if snap := c.Snapshot(later); snap.Status != Ended {
		t.Errorf("expected ENDED, got %s", snap.Status)
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	c := New(1800*time.Second, nil)
	c.Start(t.Context(), time.Now())

	status, err := c.Reset(t.Context())
	if err != nil || status != Idle {
		t.Fatalf("expected IDLE, got %s (err=%v)", status, err)
	}
	if c.IsTradingOpen(time.Now()) {
		t.Error("expected trading closed after reset")
	}
}

func TestStartFromEndedReArms(t *testing.T) {
	c := New(10*time.Second, nil)
	t0 := time.Now()
	c.Start(t.Context(), t0)
	c.Snapshot(t0.Add(11 * time.Second)) // advance to ENDED

	status, err := c.Start(t.Context(), t0.Add(20*time.Second))
	if err != nil || status != Running {
		t.Fatalf("expected RUNNING after restart, got %s (err=%v)", status, err)
	}
}
