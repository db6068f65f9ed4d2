package session

import (
	"context"
	"errors"
	"testing"

	"github.com/goplai/courtside/pkg/geom"
	"github.com/goplai/courtside/pkg/protocol"
	"github.com/goplai/courtside/pkg/track"
)

// scriptedSource yields one placeholder frame per scripted step.
type scriptedSource struct {
	frames int
	served int
	fps    float64
}

func (s *scriptedSource) Next(ctx context.Context) ([]byte, bool, error) {
	if s.served >= s.frames {
		return nil, false, nil
	}
	s.served++
	return []byte{0}, true, nil
}

func (s *scriptedSource) Info() VideoInfo {
	return VideoInfo{FrameCount: s.frames, FPS: s.fps}
}

func (s *scriptedSource) Close() error { return nil }

// scriptedPlayers replays a fixed per-frame observation script.
type scriptedPlayers struct {
	script []track.PlayerTrack
	frame  int
	err    error
}

func (s *scriptedPlayers) ProcessFrame(frame []byte) (track.PlayerTrack, error) {
	if s.err != nil {
		return nil, s.err
	}
	pt := s.script[s.frame%len(s.script)]
	s.frame++
	return pt, nil
}

// scriptedBall replays a fixed per-frame ball script.
type scriptedBall struct {
	script []*track.BallObservation
	frame  int
}

func (s *scriptedBall) ProcessFrame(frame []byte) (*track.BallObservation, []track.HoopObservation, error) {
	if len(s.script) == 0 {
		return nil, nil, nil
	}
	b := s.script[s.frame%len(s.script)]
	s.frame++
	return b, nil, nil
}

// fakeInput answers requests from queues and records what was asked.
type fakeInput struct {
	selections    []*int
	confirmations []bool
	reassignments []ReassignmentChoice

	selectionReqs    []protocol.UserInputRequest
	confirmationReqs []protocol.UserInputRequest
	reassignmentReqs []protocol.UserInputRequest
}

func (f *fakeInput) RequestPlayerSelection(ctx context.Context, req protocol.UserInputRequest) (*int, error) {
	f.selectionReqs = append(f.selectionReqs, req)
	if len(f.selections) == 0 {
		return nil, ErrInputTimeout
	}
	sel := f.selections[0]
	f.selections = f.selections[1:]
	return sel, nil
}

func (f *fakeInput) RequestConfirmation(ctx context.Context, req protocol.UserInputRequest) (bool, error) {
	f.confirmationReqs = append(f.confirmationReqs, req)
	if len(f.confirmations) == 0 {
		return false, ErrInputTimeout
	}
	c := f.confirmations[0]
	f.confirmations = f.confirmations[1:]
	return c, nil
}

func (f *fakeInput) RequestReassignment(ctx context.Context, req protocol.UserInputRequest) (ReassignmentChoice, error) {
	f.reassignmentReqs = append(f.reassignmentReqs, req)
	if len(f.reassignments) == 0 {
		return ReassignmentChoice{}, ErrInputTimeout
	}
	c := f.reassignments[0]
	f.reassignments = f.reassignments[1:]
	return c, nil
}

// recordingEmitter captures every event.
type recordingEmitter struct {
	statuses   []string
	heartbeats int
	errors     []string
	summary    *track.Summary
}

func (e *recordingEmitter) Status(frameNum, frameTotal int, fps float64, message string) error {
	e.statuses = append(e.statuses, message)
	return nil
}

func (e *recordingEmitter) Heartbeat() error {
	e.heartbeats++
	return nil
}

func (e *recordingEmitter) Error(frameNum int, fps float64, message string) error {
	e.errors = append(e.errors, message)
	return nil
}

func (e *recordingEmitter) Completed(frameNum int, fps float64, summary track.Summary) error {
	e.summary = &summary
	return nil
}

func playerObs(id int, x, y float64) track.PlayerObservation {
	box := geom.NewBox(x-25, y-75, x+25, y+75)
	return track.PlayerObservation{ID: id, Box: box, Center: geom.NewPoint(x, y), Confidence: 0.9}
}

func testRunnerConfig() RunnerConfig {
	cfg := DefaultRunnerConfig()
	cfg.Possession.MinFrames = 1
	cfg.Reconciler.MaxLostFrames = 2
	return cfg
}

func intp(v int) *int { return &v }

func TestRunnerEndToEnd(t *testing.T) {
	const frames = 6

	// Player 7 holds the ball for the whole clip.
	playerScript := []track.PlayerTrack{
		{7: playerObs(7, 100, 100)},
	}
	ballBox := geom.NewBox(90, 90, 110, 110)
	ballScript := []*track.BallObservation{
		{Box: ballBox, Center: ballBox.Center()},
	}

	input := &fakeInput{selections: []*int{intp(7)}}
	emitter := &recordingEmitter{}
	runner := NewRunner(
		testRunnerConfig(),
		&scriptedSource{frames: frames, fps: 30},
		&scriptedPlayers{script: playerScript},
		&scriptedBall{script: ballScript},
		[]track.Interval{{Start: 0, End: frames - 1}},
		input,
		emitter,
	)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary == nil || emitter.summary == nil {
		t.Fatal("Run() produced no summary")
	}

	if len(input.selectionReqs) != 1 {
		t.Errorf("got %d selection requests, want 1", len(input.selectionReqs))
	}
	if summary.ProcessedFrames != frames {
		t.Errorf("ProcessedFrames = %d, want %d", summary.ProcessedFrames, frames)
	}
	if len(summary.TrackedPlayerIDs) != 1 || summary.TrackedPlayerIDs[0] != 7 {
		t.Errorf("TrackedPlayerIDs = %v, want [7]", summary.TrackedPlayerIDs)
	}

	hl := summary.Highlights[0]
	if hl.Winner == nil || hl.Winner.PlayerID != 7 {
		t.Fatalf("winner = %+v, want player 7", hl.Winner)
	}
	if !hl.TrackedPlayerWon {
		t.Error("tracked player should have won the interval")
	}
}

func TestRunnerWaitsForInitialSelection(t *testing.T) {
	playerScript := []track.PlayerTrack{
		{3: playerObs(3, 50, 50)},
	}

	// First request times out, second selects player 3.
	input := &fakeInput{selections: []*int{nil, intp(3)}}
	emitter := &recordingEmitter{}
	runner := NewRunner(
		testRunnerConfig(),
		&scriptedSource{frames: 4, fps: 30},
		&scriptedPlayers{script: playerScript},
		&scriptedBall{},
		nil,
		input,
		emitter,
	)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(input.selectionReqs) != 2 {
		t.Errorf("got %d selection requests, want 2 (skip then pick)", len(input.selectionReqs))
	}
}

func TestRunnerPermanenceConfirmationFlow(t *testing.T) {
	// Player 7 is visible and moving for two frames (enough history for
	// a velocity estimate), then player 12 takes over exactly on its
	// predicted path. The reconciler substitutes silently, then asks
	// for permanence confirmation once the original has been gone too
	// long.
	script := []track.PlayerTrack{
		{7: playerObs(7, 100, 100)},
		{7: playerObs(7, 101, 100)},
		{12: playerObs(12, 102, 100)},
		{12: playerObs(12, 103, 100)},
		{12: playerObs(12, 104, 100)},
		{12: playerObs(12, 105, 100)},
	}

	input := &fakeInput{
		selections:    []*int{intp(7)},
		confirmations: []bool{true},
	}
	emitter := &recordingEmitter{}
	runner := NewRunner(
		testRunnerConfig(),
		&scriptedSource{frames: len(script), fps: 30},
		&scriptedPlayers{script: script},
		&scriptedBall{},
		nil,
		input,
		emitter,
	)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(input.confirmationReqs) != 1 {
		t.Fatalf("got %d confirmation requests, want 1", len(input.confirmationReqs))
	}
	req := input.confirmationReqs[0]
	if req.OriginalID != 7 || req.CurrentID != 12 {
		t.Errorf("confirmation ids = (%d, %d), want (7, 12)", req.OriginalID, req.CurrentID)
	}

	// Confirmed permanent: both ids are in the tracked history.
	if len(summary.TrackedPlayerIDs) != 2 {
		t.Errorf("TrackedPlayerIDs = %v, want [7 12]", summary.TrackedPlayerIDs)
	}
}

func TestRunnerReassignmentGiveUp(t *testing.T) {
	// Player 7 appears once then vanishes with nobody nearby.
	script := []track.PlayerTrack{
		{7: playerObs(7, 100, 100)},
		{},
		{},
		{},
		{},
	}

	input := &fakeInput{
		selections:    []*int{intp(7)},
		reassignments: []ReassignmentChoice{{GiveUp: true}},
	}
	emitter := &recordingEmitter{}
	runner := NewRunner(
		testRunnerConfig(),
		&scriptedSource{frames: len(script), fps: 30},
		&scriptedPlayers{script: script},
		&scriptedBall{},
		nil,
		input,
		emitter,
	)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// One reassignment prompt, then untracked: no further prompts.
	if len(input.reassignmentReqs) != 1 {
		t.Errorf("got %d reassignment requests, want 1 (untracked persists)", len(input.reassignmentReqs))
	}
}

func TestRunnerSuggestionIndexPick(t *testing.T) {
	// Player 7 vanishes; players 2 and 4 are near its last position.
	script := []track.PlayerTrack{
		{7: playerObs(7, 100, 100)},
		{2: playerObs(2, 700, 700), 4: playerObs(4, 710, 700)},
		{2: playerObs(2, 700, 700), 4: playerObs(4, 710, 700)},
	}

	input := &fakeInput{
		selections:    []*int{intp(7)},
		reassignments: []ReassignmentChoice{{SuggestionIndex: intp(1)}},
	}
	emitter := &recordingEmitter{}
	runner := NewRunner(
		testRunnerConfig(),
		&scriptedSource{frames: len(script), fps: 30},
		&scriptedPlayers{script: script},
		&scriptedBall{},
		nil,
		input,
		emitter,
	)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(input.reassignmentReqs) == 0 {
		t.Fatal("expected a reassignment request")
	}

	req := input.reassignmentReqs[0]
	if len(req.Suggestions) == 0 {
		t.Fatal("expected confidence-ranked suggestions in the request")
	}
	// Suggestion 1 is the highest-confidence candidate; after the pick
	// no further reassignment prompts occur while it stays visible.
	if len(input.reassignmentReqs) != 1 {
		t.Errorf("got %d reassignment requests, want 1", len(input.reassignmentReqs))
	}
}

func TestRunnerUpstreamFailureIsFatal(t *testing.T) {
	trackerErr := errors.New("inference backend unavailable")
	emitter := &recordingEmitter{}
	runner := NewRunner(
		testRunnerConfig(),
		&scriptedSource{frames: 3, fps: 30},
		&scriptedPlayers{err: trackerErr},
		&scriptedBall{},
		nil,
		&fakeInput{},
		emitter,
	)

	_, err := runner.Run(context.Background())
	if !errors.Is(err, trackerErr) {
		t.Fatalf("Run() error = %v, want wrapped tracker error", err)
	}
	if len(emitter.errors) != 1 {
		t.Errorf("got %d error events, want 1", len(emitter.errors))
	}
	if emitter.summary != nil {
		t.Error("no summary must be emitted after an upstream failure")
	}
}

func TestRunnerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emitter := &recordingEmitter{}
	runner := NewRunner(
		testRunnerConfig(),
		&scriptedSource{frames: 100, fps: 30},
		&scriptedPlayers{script: []track.PlayerTrack{{}}},
		&scriptedBall{},
		nil,
		&fakeInput{},
		emitter,
	)

	_, err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if emitter.summary != nil {
		t.Error("cancelled run must not emit a summary")
	}
}
