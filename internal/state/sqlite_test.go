package state

import (
	"context"
	"path/filepath"
	"testing"
)

func TestTimelineMirrorRoundTrip(t *testing.T) {
	mirror, err := OpenTimelineMirror(filepath.Join(t.TempDir(), "timeline.db"))
	if err != nil {
		t.Fatalf("OpenTimelineMirror: %v", err)
	}
	defer mirror.Close()

	ctx := context.Background()
	first := NewTimelineRecord("s1", "set_phase", "phase set to shooting", map[string]any{"phase": "shooting"})
	second := NewTimelineRecord("s1", "adjust_cp", "player spent 1 CP", map[string]any{"delta": -1})
	other := NewTimelineRecord("s2", "advance_round", "round 2", nil)

	for _, rec := range []TimelineRecord{first, second, other} {
		if err := mirror.Append(ctx, rec.SessionID, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := mirror.Records(ctx, "s1")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].ID != first.ID || records[1].ID != second.ID {
		t.Errorf("records out of ULID order: %s, %s", records[0].ID, records[1].ID)
	}
	if records[0].Payload["phase"] != "shooting" {
		t.Errorf("payload round-trip failed: %v", records[0].Payload)
	}
}

func TestMemoryStoreSurvivesMirrorFailure(t *testing.T) {
	mirror, err := OpenTimelineMirror(filepath.Join(t.TempDir(), "timeline.db"))
	if err != nil {
		t.Fatalf("OpenTimelineMirror: %v", err)
	}
	mirror.Close() // appends will now fail

	store := NewMemoryStore(nil)
	store.PutSession(NewDemoSession("s1"))
	store.AttachMirror(mirror)

	rec := NewTimelineRecord("s1", "set_phase", "phase set", nil)
	if err := store.AppendTimeline(context.Background(), "s1", rec); err != nil {
		t.Fatalf("AppendTimeline should swallow mirror failure, got %v", err)
	}
	timeline, err := store.Timeline(context.Background(), "s1")
	if err != nil || len(timeline) != 1 {
		t.Fatalf("in-memory timeline lost: %v, %d records", err, len(timeline))
	}
}
