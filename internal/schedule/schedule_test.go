package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseAcceptsCommonForms(t *testing.T) {
	cases := []string{
		"* * * * *",
		"*/5 * * * *",
		"0 3 * * *",
		"0,15,30,45 9-17 * * 1-5",
		"@daily",
		"@every 6h",
	}

	for _, expr := range cases {
		if _, err := Parse(expr); err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", expr, err)
		}
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []string{
		"",
		"61 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * *",
		"0 0 0 * * *",
		"@sometimes",
	}

	for _, expr := range cases {
		if _, err := Parse(expr); err == nil {
			t.Fatalf("Parse(%q) expected error", expr)
		}
	}
}

func TestNextIsUTC(t *testing.T) {
	spec, err := Parse("0 3 * * *")
	if err != nil {
		t.Fatal(err)
	}
	cet := time.FixedZone("CET", 3600)
	got := spec.Next(time.Date(2026, 3, 1, 3, 30, 0, 0, cet))
	want := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Next = %s, want %s", got, want)
	}
}

// fakeClock advances only when the loop sleeps or a job runs.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.t = c.t.Add(d)
	return nil
}

func TestLoopRunsAtEachSlot(t *testing.T) {
	spec, err := Parse("*/5 * * * *")
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slots []time.Time
	loop := &Loop{Spec: spec, Now: clock.now, Sleep: clock.sleep}
	err = loop.Run(ctx, func(_ context.Context, slot time.Time) error {
		slots = append(slots, slot)
		if len(slots) == 3 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []time.Time{
		time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 10, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC),
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d runs, want %d", len(slots), len(want))
	}
	for i := range want {
		if !slots[i].Equal(want[i]) {
			t.Fatalf("run %d at %s, want %s", i, slots[i], want[i])
		}
	}
}

func TestLoopSkipsSlotsCoveredByLongRun(t *testing.T) {
	spec, err := Parse("*/5 * * * *")
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slots []time.Time
	loop := &Loop{Spec: spec, Now: clock.now, Sleep: clock.sleep}
	_ = loop.Run(ctx, func(_ context.Context, slot time.Time) error {
		slots = append(slots, slot)
		if len(slots) == 1 {
			clock.t = clock.t.Add(12 * time.Minute)
		} else {
			cancel()
		}
		return nil
	})

	if len(slots) != 2 || !slots[1].Equal(time.Date(2026, 1, 1, 0, 20, 0, 0, time.UTC)) {
		t.Fatalf("expected the 00:10 and 00:15 slots to be skipped, got %v", slots)
	}
}

func TestLoopStopsOnJobError(t *testing.T) {
	spec, err := Parse("@every 1h")
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	boom := errors.New("boom")

	loop := &Loop{Spec: spec, Now: clock.now, Sleep: clock.sleep}
	err = loop.Run(context.Background(), func(context.Context, time.Time) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
}

func TestLoopReturnsNilWhenCanceledWhileWaiting(t *testing.T) {
	spec, err := Parse("@daily")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := &Loop{Spec: spec}
	err = loop.Run(ctx, func(context.Context, time.Time) error {
		t.Fatal("job must not run")
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil on shutdown, got %v", err)
	}
}
