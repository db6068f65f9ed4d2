package vision

import (
	"testing"

	"github.com/goplai/courtside/pkg/geom"
)

// fakeDetector replays a scripted detection sequence per class.
type fakeDetector struct {
	frames []map[int][]Detection
	frame  int
}

func (f *fakeDetector) DetectClass(jpeg []byte, classID int) ([]Detection, error) {
	// The ball tracker calls twice per frame (ball then hoop), the
	// player tracker once; advance on the class we saw last.
	if f.frame >= len(f.frames) {
		return nil, nil
	}
	return f.frames[f.frame][classID], nil
}

func (f *fakeDetector) advance() { f.frame++ }

func det(x1, y1, x2, y2, confidence float64) Detection {
	return Detection{Box: geom.NewBox(x1, y1, x2, y2), Confidence: confidence, ClassID: PersonClassID}
}

func TestPlayerTrackerStableIDs(t *testing.T) {
	detector := &fakeDetector{frames: []map[int][]Detection{
		{PersonClassID: {det(100, 100, 150, 250, 0.9), det(400, 100, 450, 250, 0.8)}},
		{PersonClassID: {det(105, 102, 155, 252, 0.9), det(402, 101, 452, 251, 0.8)}},
		{PersonClassID: {det(110, 104, 160, 254, 0.9), det(404, 102, 454, 252, 0.8)}},
	}}
	tracker := NewPlayerMotionTracker(detector, PersonClassID, DefaultTrackerConfig())

	var lastIDs []int
	for i := 0; i < 3; i++ {
		pt, err := tracker.ProcessFrame(nil)
		if err != nil {
			t.Fatalf("frame %d: ProcessFrame() error = %v", i, err)
		}
		if len(pt) != 2 {
			t.Fatalf("frame %d: got %d players, want 2", i, len(pt))
		}
		ids := pt.IDs()
		if i > 0 && (ids[0] != lastIDs[0] || ids[1] != lastIDs[1]) {
			t.Errorf("frame %d: ids changed from %v to %v", i, lastIDs, ids)
		}
		lastIDs = ids
		detector.advance()
	}
}

func TestPlayerTrackerNewIDForNewDetection(t *testing.T) {
	detector := &fakeDetector{frames: []map[int][]Detection{
		{PersonClassID: {det(100, 100, 150, 250, 0.9)}},
		{PersonClassID: {det(102, 100, 152, 250, 0.9), det(600, 300, 650, 450, 0.7)}},
	}}
	tracker := NewPlayerMotionTracker(detector, PersonClassID, DefaultTrackerConfig())

	pt, err := tracker.ProcessFrame(nil)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	first := pt.IDs()[0]
	detector.advance()

	pt, err = tracker.ProcessFrame(nil)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	ids := pt.IDs()
	if len(ids) != 2 {
		t.Fatalf("got %d players, want 2", len(ids))
	}
	if ids[0] != first {
		t.Errorf("existing track id changed: %d -> %d", first, ids[0])
	}
	if ids[1] == first {
		t.Error("new detection reused an existing id")
	}
}

func TestPlayerTrackerSurvivesShortDropout(t *testing.T) {
	cfg := DefaultTrackerConfig()
	cfg.MaxMisses = 2

	detector := &fakeDetector{frames: []map[int][]Detection{
		{PersonClassID: {det(100, 100, 150, 250, 0.9)}},
		{PersonClassID: nil},
		{PersonClassID: {det(104, 100, 154, 250, 0.9)}},
	}}
	tracker := NewPlayerMotionTracker(detector, PersonClassID, cfg)

	pt, _ := tracker.ProcessFrame(nil)
	first := pt.IDs()[0]
	detector.advance()

	pt, err := tracker.ProcessFrame(nil)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(pt) != 0 {
		t.Fatalf("dropout frame reported %d players, want 0", len(pt))
	}
	detector.advance()

	pt, err = tracker.ProcessFrame(nil)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if got := pt.IDs(); len(got) != 1 || got[0] != first {
		t.Errorf("after dropout ids = %v, want [%d]", got, first)
	}
}

func TestPlayerTrackerDropsStaleTrack(t *testing.T) {
	cfg := DefaultTrackerConfig()
	cfg.MaxMisses = 1

	frames := []map[int][]Detection{
		{PersonClassID: {det(100, 100, 150, 250, 0.9)}},
		{PersonClassID: nil},
		{PersonClassID: nil},
		{PersonClassID: {det(100, 100, 150, 250, 0.9)}},
	}
	detector := &fakeDetector{frames: frames}
	tracker := NewPlayerMotionTracker(detector, PersonClassID, cfg)

	pt, _ := tracker.ProcessFrame(nil)
	first := pt.IDs()[0]

	for i := 1; i < len(frames); i++ {
		detector.advance()
		pt, _ = tracker.ProcessFrame(nil)
	}

	// The gap exceeded MaxMisses, so the reappearance is a new track.
	if got := pt.IDs(); len(got) != 1 || got[0] == first {
		t.Errorf("ids after long gap = %v, want one fresh id != %d", got, first)
	}
}

func TestBallTrackerPicksHighestConfidence(t *testing.T) {
	ball := 32
	detector := &fakeDetector{frames: []map[int][]Detection{
		{ball: {
			{Box: geom.NewBox(10, 10, 20, 20), Confidence: 0.5, ClassID: ball},
			{Box: geom.NewBox(300, 300, 310, 310), Confidence: 0.9, ClassID: ball},
		}},
	}}
	tracker := NewBallMotionTracker(detector, ball, NoClass, DefaultTrackerConfig())

	obs, hoops, err := tracker.ProcessFrame(nil)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if hoops != nil {
		t.Errorf("hoops = %v, want none with hoop class disabled", hoops)
	}
	if obs == nil {
		t.Fatal("expected a ball observation")
	}
	if obs.Center.X < 200 {
		t.Errorf("ball center = %v, want the high-confidence detection", obs.Center)
	}
}

func TestBallTrackerNilOnNoDetection(t *testing.T) {
	detector := &fakeDetector{frames: []map[int][]Detection{
		{32: nil},
	}}
	tracker := NewBallMotionTracker(detector, 32, NoClass, DefaultTrackerConfig())

	obs, _, err := tracker.ProcessFrame(nil)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if obs != nil {
		t.Errorf("ball = %+v, want nil", obs)
	}
}

func TestBallTrackerReportsHoops(t *testing.T) {
	ball, hoop := 0, 1
	detector := &fakeDetector{frames: []map[int][]Detection{
		{
			ball: {{Box: geom.NewBox(50, 50, 60, 60), Confidence: 0.8, ClassID: ball}},
			hoop: {{Box: geom.NewBox(500, 40, 560, 90), Confidence: 0.7, ClassID: hoop}},
		},
	}}
	tracker := NewBallMotionTracker(detector, ball, hoop, DefaultTrackerConfig())

	obs, hoops, err := tracker.ProcessFrame(nil)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if obs == nil {
		t.Fatal("expected a ball observation")
	}
	if len(hoops) != 1 {
		t.Fatalf("got %d hoops, want 1", len(hoops))
	}
	if hoops[0].Center.X != 530 || hoops[0].Center.Y != 65 {
		t.Errorf("hoop center = %v, want (530, 65)", hoops[0].Center)
	}
}
