package coworking

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func eventAt(t *testing.T, events []LockEvent, actor string, kind LockEventKind) int {
	t.Helper()
	for i, e := range events {
		if e.Actor == actor && e.Kind == kind {
			return i
		}
	}
	t.Fatalf("no %s event for %s", kind, actor)
	return -1
}

func TestLockDemoReadersOverlapWriterWaits(t *testing.T) {
	var out bytes.Buffer
	demo := &LockDemo{DB: NewDatabase(), Hold: 300 * time.Millisecond, Stagger: 30 * time.Millisecond, Out: &out}

	events, err := demo.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(events) != 9 {
		t.Fatalf("events = %d, want 9", len(events))
	}

	r1Released := eventAt(t, events, "R1", LockReleased)
	r2Granted := eventAt(t, events, "R2", LockGranted)
	r2Released := eventAt(t, events, "R2", LockReleased)
	w1Granted := eventAt(t, events, "W1", LockGranted)

	if r2Granted > r1Released {
		t.Fatalf("R2 was granted only after R1 released; readers did not overlap")
	}
	if w1Granted < r1Released || w1Granted < r2Released {
		t.Fatalf("W1 granted while a reader held the lock")
	}
	if !strings.Contains(out.String(), "GRANTED Write Lock") {
		t.Fatalf("output missing writer line:\n%s", out.String())
	}
}

func TestLockDemoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	demo := &LockDemo{DB: NewDatabase(), Hold: time.Second, Stagger: time.Second}
	if _, err := demo.Run(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
