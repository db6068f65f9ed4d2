package session

import (
	"context"
	"errors"

	"github.com/goplai/courtside/pkg/protocol"
	"github.com/goplai/courtside/pkg/track"
)

// ErrInputTimeout is returned by an InputProvider when the human did
// not respond within the allotted window. The runner treats it as "no
// selection" and continues, not as a failure.
var ErrInputTimeout = errors.New("user input timed out")

// ErrInvalidResponse is returned by an InputProvider when the client
// sent a response that could not be interpreted. The runner emits a
// clarifying status and continues without applying anything.
var ErrInvalidResponse = errors.New("invalid user input response")

// FrameSource yields video frames in order. Next returns ok=false once
// the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (frame []byte, ok bool, err error)
	Info() VideoInfo
	Close() error
}

// VideoInfo describes the source stream.
type VideoInfo struct {
	FrameCount int
	FPS        float64
	Width      int
	Height     int
}

// PlayerTracker is the upstream player detection+tracking backend. Ids
// in the returned track are tracker-local and may be relabeled between
// frames; each call's output is treated as ground truth for that frame.
type PlayerTracker interface {
	ProcessFrame(frame []byte) (track.PlayerTrack, error)
}

// BallTracker is the upstream ball/hoop detection backend. The ball is
// nil on frames where it was not detected.
type BallTracker interface {
	ProcessFrame(frame []byte) (*track.BallObservation, []track.HoopObservation, error)
}

// ReassignmentChoice is the outcome of a reassignment_selection
// request. Exactly one of the fields is meaningful: GiveUp abandons
// tracking, PlayerID is a direct pick, SuggestionIndex is a 1-based
// index into the offered suggestions. All unset means no selection.
type ReassignmentChoice struct {
	GiveUp          bool
	PlayerID        *int
	SuggestionIndex *int
}

// InputProvider resolves human-in-the-loop requests. Implementations
// block until a response arrives, the context is cancelled, or their
// timeout elapses (ErrInputTimeout). The frame loop does not advance
// while a request is outstanding.
type InputProvider interface {
	// RequestPlayerSelection asks for the initial player to follow.
	// A nil result means the user skipped.
	RequestPlayerSelection(ctx context.Context, req protocol.UserInputRequest) (*int, error)

	// RequestConfirmation asks whether a temporary assignment should
	// become permanent.
	RequestConfirmation(ctx context.Context, req protocol.UserInputRequest) (bool, error)

	// RequestReassignment asks for a manual target pick after the
	// target was fully lost.
	RequestReassignment(ctx context.Context, req protocol.UserInputRequest) (ReassignmentChoice, error)
}

// Emitter receives progress and result events from the runner.
type Emitter interface {
	Status(frameNum, frameTotal int, fps float64, message string) error
	Heartbeat() error
	Error(frameNum int, fps float64, message string) error
	Completed(frameNum int, fps float64, summary track.Summary) error
}

// IntervalSource supplies the highlight intervals for a video before
// per-frame processing begins.
type IntervalSource interface {
	Intervals(info VideoInfo) ([]track.Interval, error)
}
