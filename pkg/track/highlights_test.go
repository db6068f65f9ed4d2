package track

import (
	"testing"
)

func TestHighlightTally(t *testing.T) {
	a := NewHighlightAccumulator([]Interval{{Start: 0, End: 2}})

	a.Observe(0, 5)
	a.Observe(1, 5)
	a.Observe(2, 7)

	summary := a.Finalize(3, 3, 30, []int{5})
	if len(summary.Highlights) != 1 {
		t.Fatalf("got %d highlights, want 1", len(summary.Highlights))
	}

	hl := summary.Highlights[0]
	if hl.Possessions[5] != 2 || hl.Possessions[7] != 1 {
		t.Errorf("possessions = %v, want {5:2, 7:1}", hl.Possessions)
	}
	if hl.Winner == nil || hl.Winner.PlayerID != 5 || hl.Winner.Frames != 2 {
		t.Errorf("winner = %+v, want player 5 with 2 frames", hl.Winner)
	}
	if !hl.TrackedPlayerWon {
		t.Error("tracked_player_won should be true: winner 5 is in id history")
	}
	if summary.TrackedPlayerHighlights != 1 || summary.TotalHighlights != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)",
			summary.TrackedPlayerHighlights, summary.TotalHighlights)
	}
}

func TestHighlightNoPossessionFrames(t *testing.T) {
	a := NewHighlightAccumulator([]Interval{{Start: 0, End: 5}})

	for frame := 0; frame <= 5; frame++ {
		a.Observe(frame, NoPlayer)
	}

	summary := a.Finalize(6, 6, 30, nil)
	hl := summary.Highlights[0]
	if hl.Winner != nil {
		t.Errorf("winner = %+v, want nil for empty interval", hl.Winner)
	}
	if hl.TrackedPlayerWon {
		t.Error("tracked_player_won should be false for empty interval")
	}
	if summary.TotalHighlights != 0 {
		t.Errorf("TotalHighlights = %d, want 0 (empty interval not counted)", summary.TotalHighlights)
	}
}

func TestHighlightIntervalsConsumedFIFO(t *testing.T) {
	a := NewHighlightAccumulator([]Interval{
		{Start: 0, End: 2},
		{Start: 10, End: 12},
	})

	a.Observe(0, 1)
	// Frame 5 is between intervals: first interval dropped, nothing
	// counted.
	a.Observe(5, 1)
	// Frames inside the second interval now tally against it.
	a.Observe(10, 2)
	a.Observe(11, 2)
	// A frame back inside the first interval's range never resurrects
	// it (monotonic input assumed; stale frames are ignored).
	a.Observe(12, 2)

	summary := a.Finalize(13, 13, 30, []int{2})
	first, second := summary.Highlights[0], summary.Highlights[1]
	if first.Possessions[1] != 1 {
		t.Errorf("first interval possessions = %v, want {1:1}", first.Possessions)
	}
	if second.Possessions[2] != 3 {
		t.Errorf("second interval possessions = %v, want {2:3}", second.Possessions)
	}
	if second.Winner == nil || second.Winner.PlayerID != 2 {
		t.Errorf("second winner = %+v, want player 2", second.Winner)
	}
}

func TestHighlightWinnerTieBreaksToLowestID(t *testing.T) {
	a := NewHighlightAccumulator([]Interval{{Start: 0, End: 3}})

	a.Observe(0, 9)
	a.Observe(1, 9)
	a.Observe(2, 4)
	a.Observe(3, 4)

	summary := a.Finalize(4, 4, 30, nil)
	winner := summary.Highlights[0].Winner
	if winner == nil || winner.PlayerID != 4 {
		t.Errorf("winner = %+v, want lowest id 4 on tie", winner)
	}
}

func TestHighlightTimes(t *testing.T) {
	a := NewHighlightAccumulator([]Interval{{Start: 30, End: 180}})
	summary := a.Finalize(200, 200, 30, nil)

	hl := summary.Highlights[0]
	if hl.StartTime != 1.0 || hl.EndTime != 6.0 || hl.Duration != 5.0 {
		t.Errorf("times = (%v, %v, %v), want (1, 6, 5)", hl.StartTime, hl.EndTime, hl.Duration)
	}
}
