package trigger

import (
	"fmt"
	"testing"
	"time"

	"warvox/internal/types"
)

// testClock steps a fake time source.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEvaluator(t *testing.T) (*Evaluator, *testClock) {
	t.Helper()
	clock := newTestClock()
	e := New(Config{}, nil)
	e.SetClock(clock.Now)
	return e, clock
}

func frag(text string, at time.Time) types.Fragment {
	return types.Fragment{Text: text, Timestamp: at}
}

func TestPriorityKeywordTriggersImmediately(t *testing.T) {
	e, clock := newTestEvaluator(t)

	d := e.Observe(frag("hey warvox what's going on", clock.Now()))
	if !d.Triggered {
		t.Fatal("priority keyword should trigger on first fragment")
	}
	if d.Kind != types.TriggerPriorityKeyword {
		t.Errorf("kind = %s, want priority_keyword", d.Kind)
	}
	if d.Confidence != 1.0 {
		t.Errorf("confidence = %f, want 1.0", d.Confidence)
	}
	if len(d.Fragments) != 1 {
		t.Errorf("flushed %d fragments, want 1", len(d.Fragments))
	}
	if e.Pending() != 0 {
		t.Error("buffer should be reset after trigger")
	}
}

func TestCorrectionIsPriority(t *testing.T) {
	e, clock := newTestEvaluator(t)
	d := e.Observe(frag("no wait that was 3 wounds", clock.Now()))
	if !d.Triggered || d.Kind != types.TriggerPriorityKeyword {
		t.Fatalf("correction should be a priority trigger, got %+v", d)
	}
}

func TestCompletionPhraseTrigger(t *testing.T) {
	e, clock := newTestEvaluator(t)
	d := e.Observe(frag("okay moving on to shooting", clock.Now()))
	if !d.Triggered || d.Kind != types.TriggerActionComplete {
		t.Fatalf("want action_complete trigger, got %+v", d)
	}
	if d.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", d.Confidence)
	}
}

func TestLongSilenceTrigger(t *testing.T) {
	e, clock := newTestEvaluator(t)

	if d := e.Observe(frag("the boyz charged", clock.Now())); d.Triggered {
		t.Fatalf("unexpected trigger: %+v", d)
	}
	clock.Advance(11 * time.Second)
	d := e.Observe(frag("rolled a bunch of sixes", clock.Now()))
	if !d.Triggered || d.Kind != types.TriggerLongSilence {
		t.Fatalf("want long_silence trigger, got %+v", d)
	}
	if d.Confidence != 0.85 {
		t.Errorf("confidence = %f, want 0.85", d.Confidence)
	}
	if len(d.Fragments) != 2 {
		t.Errorf("flushed %d fragments, want 2", len(d.Fragments))
	}
}

func TestAccumulationTrigger(t *testing.T) {
	e, clock := newTestEvaluator(t)

	clock.Advance(9 * time.Second) // past MinInterval since construction
	for i := 0; i < 2; i++ {
		if d := e.Observe(frag(fmt.Sprintf("fragment %d", i), clock.Now())); d.Triggered {
			t.Fatalf("unexpected trigger at fragment %d: %+v", i, d)
		}
		clock.Advance(time.Second)
	}
	d := e.Observe(frag("third fragment", clock.Now()))
	if !d.Triggered || d.Kind != types.TriggerAccumulation {
		t.Fatalf("want accumulation trigger, got %+v", d)
	}
	if d.Confidence != 0.75 {
		t.Errorf("confidence = %f, want 0.75", d.Confidence)
	}
}

func TestTriggerWithinSafetyMaximum(t *testing.T) {
	// Property: with at least one pending fragment, some trigger fires
	// at or before the 30s safety maximum no matter the cadence.
	for _, gap := range []time.Duration{time.Second, 5 * time.Second, 9 * time.Second} {
		e, clock := newTestEvaluator(t)
		start := clock.Now()
		fired := false
		for i := 0; i < 40 && !fired; i++ {
			d := e.Observe(frag(fmt.Sprintf("quiet fragment %d", i), clock.Now()))
			if d.Triggered {
				if elapsed := d.Timestamp.Sub(start); elapsed > 30*time.Second {
					t.Errorf("gap %v: first trigger after %v, want <= 30s", gap, elapsed)
				}
				fired = true
			}
			clock.Advance(gap)
		}
		if !fired {
			t.Errorf("gap %v: no trigger fired at all", gap)
		}
	}
}

func TestSafetyNetDirect(t *testing.T) {
	// Disable every earlier check to isolate check 5.
	cfg := DefaultConfig()
	cfg.LongSilence = time.Hour
	cfg.MinFragments = 100
	clock := newTestClock()
	e := New(cfg, nil)
	e.SetClock(clock.Now)

	if d := e.Observe(frag("quiet fragment", clock.Now())); d.Triggered {
		t.Fatalf("unexpected trigger: %+v", d)
	}
	clock.Advance(30 * time.Second)
	d := e.Observe(frag("another quiet fragment", clock.Now()))
	if !d.Triggered || d.Kind != types.TriggerSafetyNet {
		t.Fatalf("want safety_net trigger at 30s, got %+v", d)
	}
	if d.Confidence != 0.6 {
		t.Errorf("confidence = %f, want 0.6", d.Confidence)
	}
}

func TestEmptyTextIsNonTrigger(t *testing.T) {
	e, clock := newTestEvaluator(t)
	d := e.Observe(frag("   ", clock.Now()))
	if d.Triggered {
		t.Fatal("blank fragment must not trigger")
	}
	if e.Pending() != 0 {
		t.Error("blank fragment must not be buffered")
	}
}

func TestBufferAccumulatesSequenceNumbers(t *testing.T) {
	e, clock := newTestEvaluator(t)
	e.Observe(frag("first", clock.Now()))
	clock.Advance(time.Second)
	e.Observe(frag("second", clock.Now()))
	clock.Advance(time.Second)
	d := e.Observe(frag("warvox status", clock.Now()))
	if !d.Triggered {
		t.Fatal("expected priority trigger")
	}
	for i, f := range d.Fragments {
		if f.Seq != i+1 {
			t.Errorf("fragment %d seq = %d, want %d", i, f.Seq, i+1)
		}
	}
}
