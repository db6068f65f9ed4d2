package session

import (
	"context"
	"errors"
	"testing"

	"github.com/goplai/courtside/pkg/track"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess := NewSession("/tmp/uploads/abc.mp4", "game.mp4")
	if sess.Status != StatusCreated {
		t.Fatalf("new session status = %q, want %q", sess.Status, StatusCreated)
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OriginalFilename != "game.mp4" || got.VideoPath != "/tmp/uploads/abc.mp4" {
		t.Errorf("Get() = %+v, want stored fields back", got)
	}

	for _, status := range []Status{StatusProcessing, StatusCompleted} {
		if err := store.SetStatus(ctx, sess.ID, status); err != nil {
			t.Fatalf("SetStatus(%q) error = %v", status, err)
		}
		got, err = store.Get(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status != status {
			t.Errorf("status = %q, want %q", got.Status, status)
		}
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.SetStatus(ctx, "no-such-id", StatusError); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetSummary(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSummary(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStoreSummaryRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess := NewSession("/tmp/uploads/def.mp4", "clip.mp4")
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	summary := track.Summary{
		ProcessedFrames:         300,
		TotalFrames:             300,
		ProcessingFPS:           30,
		TrackedPlayerIDs:        []int{5, 12},
		TrackedPlayerHighlights: 1,
		TotalHighlights:         2,
		Highlights: []track.HighlightSummary{
			{
				Interval:         [2]int{0, 89},
				EndTime:          2.97,
				Duration:         2.97,
				Possessions:      map[int]int{5: 60, 9: 20},
				Winner:           &track.Winner{PlayerID: 5, Frames: 60},
				TrackedPlayerWon: true,
			},
		},
	}
	if err := store.SaveSummary(ctx, sess.ID, summary); err != nil {
		t.Fatalf("SaveSummary() error = %v", err)
	}

	got, err := store.GetSummary(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}
	if got.TrackedPlayerHighlights != 1 || got.TotalHighlights != 2 {
		t.Errorf("summary counters = (%d, %d), want (1, 2)", got.TrackedPlayerHighlights, got.TotalHighlights)
	}
	if got.Highlights[0].Winner == nil || got.Highlights[0].Winner.PlayerID != 5 {
		t.Errorf("winner = %+v, want player 5", got.Highlights[0].Winner)
	}
	if got.Highlights[0].Possessions[9] != 20 {
		t.Errorf("possessions[9] = %d, want 20", got.Highlights[0].Possessions[9])
	}

	// Saving again overwrites.
	summary.TotalHighlights = 3
	if err := store.SaveSummary(ctx, sess.ID, summary); err != nil {
		t.Fatalf("SaveSummary(overwrite) error = %v", err)
	}
	got, err = store.GetSummary(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSummary() error = %v", err)
	}
	if got.TotalHighlights != 3 {
		t.Errorf("TotalHighlights after overwrite = %d, want 3", got.TotalHighlights)
	}
}
