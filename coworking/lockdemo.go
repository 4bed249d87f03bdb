package coworking

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// LockEventKind is a step in a demo actor's life.
type LockEventKind int

const (
	LockRequested LockEventKind = iota
	LockGranted
	LockReleased
)

func (k LockEventKind) String() string {
	switch k {
	case LockRequested:
		return "requested"
	case LockGranted:
		return "granted"
	case LockReleased:
		return "released"
	}
	return "unknown"
}

// LockEvent records one step of the lock demo.
type LockEvent struct {
	Actor string
	Kind  LockEventKind
	At    time.Time
}

// LockDemo shows that readers of the member list overlap while a writer waits
// for all of them.
type LockDemo struct {
	DB *Database
	// Hold is how long each actor keeps its lock.
	Hold time.Duration
	// Stagger separates the launch of consecutive actors.
	Stagger time.Duration
	Out     io.Writer

	mu     sync.Mutex
	events []LockEvent
}

func (d *LockDemo) record(actor string, kind LockEventKind, line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, LockEvent{Actor: actor, Kind: kind, At: time.Now()})
	if d.Out != nil {
		fmt.Fprintln(d.Out, line)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *LockDemo) reader(ctx context.Context, id int) error {
	actor := fmt.Sprintf("R%d", id)
	d.record(actor, LockRequested, fmt.Sprintf("[Thread %s] Requesting READ lock...", actor))

	d.DB.membersMu.RLock()
	defer d.DB.membersMu.RUnlock()
	d.record(actor, LockGranted, fmt.Sprintf("   [Thread %s] GRANTED Read Lock. Reading database...", actor))
	err := sleepCtx(ctx, d.Hold)
	d.record(actor, LockReleased, fmt.Sprintf("   [Thread %s] Done reading. Releasing lock.", actor))
	return err
}

func (d *LockDemo) writer(ctx context.Context, id int) error {
	actor := fmt.Sprintf("W%d", id)
	d.record(actor, LockRequested, fmt.Sprintf("[Thread %s] Requesting WRITE lock (Exclusive)...", actor))

	d.DB.membersMu.Lock()
	defer d.DB.membersMu.Unlock()
	d.record(actor, LockGranted, fmt.Sprintf("   >>> [Thread %s] GRANTED Write Lock. Modifying database... <<<", actor))
	err := sleepCtx(ctx, d.Hold)
	d.record(actor, LockReleased, fmt.Sprintf("   >>> [Thread %s] Done writing. Releasing lock. <<<", actor))
	return err
}

// Run launches reader R1, reader R2 and writer W1 one Stagger apart and waits
// for all three. It returns the events in the order they happened.
func (d *LockDemo) Run(ctx context.Context) ([]LockEvent, error) {
	d.mu.Lock()
	d.events = nil
	d.mu.Unlock()

	if d.Out != nil {
		fmt.Fprintln(d.Out, "\n--- Starting Concurrency Stress Test ---")
		fmt.Fprintln(d.Out, "Goal: Show that Readers can overlap, but Writers block everyone.")
		fmt.Fprintln(d.Out, "1. Launching Reader 1")
		fmt.Fprintln(d.Out, "2. Launching Reader 2 (Should start immediately - overlapping R1)")
		fmt.Fprintln(d.Out, "3. Launching Writer 1 (Should WAIT until Readers finish)")
		fmt.Fprintln(d.Out)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.reader(gctx, 1) })
	if err := sleepCtx(ctx, d.Stagger); err == nil {
		g.Go(func() error { return d.reader(gctx, 2) })
	}
	if err := sleepCtx(ctx, d.Stagger); err == nil {
		g.Go(func() error { return d.writer(gctx, 1) })
	}
	err := g.Wait()

	if d.Out != nil {
		fmt.Fprintln(d.Out, "\n--- Test Complete: Check output order above ---")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]LockEvent(nil), d.events...), err
}
