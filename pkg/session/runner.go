package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goplai/courtside/internal/config"
	"github.com/goplai/courtside/internal/log"
	"github.com/goplai/courtside/pkg/protocol"
	"github.com/goplai/courtside/pkg/track"
)

// RunnerConfig holds the orchestration parameters.
type RunnerConfig struct {
	Possession track.PossessionConfig
	Reconciler track.ReconcilerConfig

	// ProgressEvery is the status-update cadence in frames.
	ProgressEvery int

	// MaxProcessingGap forces a heartbeat when nothing has been
	// emitted for this long.
	MaxProcessingGap time.Duration

	// SuggestionCount is how many reassignment suggestions to offer.
	SuggestionCount int
}

// DefaultRunnerConfig returns the recommended orchestration parameters.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Possession:       track.DefaultPossessionConfig(),
		Reconciler:       track.DefaultReconcilerConfig(),
		ProgressEvery:    config.ProgressEvery,
		MaxProcessingGap: config.MaxProcessingGap,
		SuggestionCount:  3,
	}
}

// Runner drives one session's frame loop: trackers, possession,
// identity reconciliation, human input, highlight tallying, progress.
// Frame N's full pipeline completes before frame N+1 starts; a pending
// human-input request suspends the loop entirely.
type Runner struct {
	config  RunnerConfig
	frames  FrameSource
	players PlayerTracker
	ball    BallTracker
	input   InputProvider
	emitter Emitter

	detector    *track.PossessionDetector
	reconciler  *track.Reconciler
	accumulator *track.HighlightAccumulator
}

// NewRunner wires a runner for one session.
func NewRunner(config RunnerConfig, frames FrameSource, players PlayerTracker, ball BallTracker, intervals []track.Interval, input InputProvider, emitter Emitter) *Runner {
	return &Runner{
		config:      config,
		frames:      frames,
		players:     players,
		ball:        ball,
		input:       input,
		emitter:     emitter,
		detector:    track.NewPossessionDetector(config.Possession),
		reconciler:  track.NewReconciler(config.Reconciler),
		accumulator: track.NewHighlightAccumulator(intervals),
	}
}

// Run processes the whole stream and returns the finalized summary.
// On cancellation or upstream tracker failure no summary is emitted or
// returned: partial results are discarded.
func (r *Runner) Run(ctx context.Context) (*track.Summary, error) {
	info := r.frames.Info()
	total := info.FrameCount
	fps := info.FPS

	if err := r.emitter.Status(0, total, fps, "starting processing"); err != nil {
		return nil, fmt.Errorf("emit start status: %w", err)
	}

	frameNum := 0
	processed := 0
	lastEmit := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, ok, err := r.frames.Next(ctx)
		if err != nil {
			r.reportFatal(frameNum, fps, fmt.Sprintf("frame read failed: %v", err))
			return nil, fmt.Errorf("read frame %d: %w", frameNum, err)
		}
		if !ok {
			break
		}

		playerTrack, err := r.players.ProcessFrame(frame)
		if err != nil {
			r.reportFatal(frameNum, fps, fmt.Sprintf("player tracker failed: %v", err))
			return nil, fmt.Errorf("player tracker at frame %d: %w", frameNum, err)
		}
		ball, _, err := r.ball.ProcessFrame(frame)
		if err != nil {
			r.reportFatal(frameNum, fps, fmt.Sprintf("ball tracker failed: %v", err))
			return nil, fmt.Errorf("ball tracker at frame %d: %w", frameNum, err)
		}

		possession := r.detector.ProcessFrame(playerTrack, ball)

		if !r.reconciler.Initialized() {
			selected, err := r.solicitInitialSelection(ctx, frameNum, total, fps, playerTrack)
			if err != nil {
				return nil, err
			}
			if !selected {
				frameNum++
				processed++
				continue
			}
		} else {
			_, status, needsInput := r.reconciler.UpdateTracking(playerTrack)
			log.Debug("tracking update", "frame", frameNum, "status", status)
			if needsInput {
				if err := r.resolveUserInput(ctx, frameNum, total, fps, playerTrack); err != nil {
					return nil, err
				}
			}
		}

		r.accumulator.Observe(frameNum, possession)

		if r.config.ProgressEvery > 0 && (frameNum%r.config.ProgressEvery == 0 || frameNum == total-1) {
			if err := r.emitter.Status(frameNum, total, fps, "processing frames"); err != nil {
				return nil, fmt.Errorf("emit status: %w", err)
			}
			lastEmit = time.Now()
		} else if time.Since(lastEmit) > r.config.MaxProcessingGap {
			if err := r.emitter.Heartbeat(); err != nil {
				return nil, fmt.Errorf("emit heartbeat: %w", err)
			}
			lastEmit = time.Now()
		}

		frameNum++
		processed++
	}

	if err := r.emitter.Status(frameNum, total, fps, "generating highlights"); err != nil {
		return nil, fmt.Errorf("emit status: %w", err)
	}

	summary := r.accumulator.Finalize(processed, frameNum, fps, r.reconciler.IDHistory())
	if err := r.emitter.Completed(frameNum, fps, summary); err != nil {
		return nil, fmt.Errorf("emit completion: %w", err)
	}
	return &summary, nil
}

// solicitInitialSelection runs the initial player pick. Returns whether
// tracking was initialized this frame.
func (r *Runner) solicitInitialSelection(ctx context.Context, frameNum, total int, fps float64, players track.PlayerTrack) (bool, error) {
	if len(players) == 0 {
		if err := r.emitter.Status(frameNum, total, fps, "no players detected in frame, waiting"); err != nil {
			return false, err
		}
		return false, nil
	}

	req := protocol.UserInputRequest{
		InputType:        protocol.InputPlayerSelection,
		FrameNum:         frameNum,
		AvailablePlayers: protocol.PlayerList(players),
		Message:          "select initial player to track",
	}

	picked, err := r.input.RequestPlayerSelection(ctx, req)
	switch {
	case errors.Is(err, ErrInputTimeout), errors.Is(err, ErrInvalidResponse):
		if err := r.emitter.Status(frameNum, total, fps, "waiting for valid initial selection"); err != nil {
			return false, err
		}
		return false, nil
	case err != nil:
		return false, fmt.Errorf("initial selection at frame %d: %w", frameNum, err)
	}

	if picked == nil {
		if err := r.emitter.Status(frameNum, total, fps, "waiting for valid initial selection"); err != nil {
			return false, err
		}
		return false, nil
	}
	obs, ok := players[*picked]
	if !ok {
		if err := r.emitter.Status(frameNum, total, fps, fmt.Sprintf("selected player %d not in frame", *picked)); err != nil {
			return false, err
		}
		return false, nil
	}

	r.reconciler.InitializeTracking(obs.ID, obs.Center)
	if err := r.emitter.Status(frameNum, total, fps, fmt.Sprintf("tracking player %d", obs.ID)); err != nil {
		return false, err
	}
	return true, nil
}

// resolveUserInput handles both human-protocol branches: permanence
// confirmation of a temporary assignment, then (if the target is still
// lost) manual reassignment selection.
func (r *Runner) resolveUserInput(ctx context.Context, frameNum, total int, fps float64, players track.PlayerTrack) error {
	state := r.reconciler.State()

	if state.IsTemporaryAssignment {
		confirmed, err := r.solicitConfirmation(ctx, frameNum, players)
		switch {
		case errors.Is(err, ErrInputTimeout), errors.Is(err, ErrInvalidResponse):
			// No decision: the substitute keeps running and the
			// question will come back next frame.
			return r.emitter.Status(frameNum, total, fps, "no confirmation received, continuing provisionally")
		case err != nil:
			return fmt.Errorf("confirmation at frame %d: %w", frameNum, err)
		}

		if confirmed {
			r.reconciler.ConfirmTemporaryAsPermanent()
			return r.emitter.Status(frameNum, total, fps,
				fmt.Sprintf("temporary assignment confirmed, tracking %d", state.CurrentID))
		}
		r.reconciler.DenyTemporaryAssignment()
	}

	if !state.IsTemporaryAssignment || state.LostFrames > r.config.Reconciler.MaxLostFrames {
		return r.solicitReassignment(ctx, frameNum, total, fps, players)
	}
	return nil
}

func (r *Runner) solicitConfirmation(ctx context.Context, frameNum int, players track.PlayerTrack) (bool, error) {
	state := r.reconciler.State()
	req := protocol.UserInputRequest{
		InputType:  protocol.InputConfirmation,
		FrameNum:   frameNum,
		OriginalID: state.OriginalID,
		CurrentID:  state.CurrentID,
		Message: fmt.Sprintf("confirm temporary assignment: keep tracking %d as permanent replacement for %d?",
			state.CurrentID, state.OriginalID),
	}
	if obs, ok := players[state.OriginalID]; ok {
		box := [4]float64{obs.Box.X1, obs.Box.Y1, obs.Box.X2, obs.Box.Y2}
		req.OriginalBox = &box
	}
	if obs, ok := players[state.CurrentID]; ok {
		box := [4]float64{obs.Box.X1, obs.Box.Y1, obs.Box.X2, obs.Box.Y2}
		req.CurrentBox = &box
	}
	return r.input.RequestConfirmation(ctx, req)
}

func (r *Runner) solicitReassignment(ctx context.Context, frameNum, total int, fps float64, players track.PlayerTrack) error {
	suggestions := r.reconciler.ReassignmentSuggestions(players, r.config.SuggestionCount)

	req := protocol.UserInputRequest{
		InputType:        protocol.InputReassignmentSelection,
		FrameNum:         frameNum,
		AvailablePlayers: protocol.PlayerList(players),
		Message:          "choose a player to reassign or continue without tracking (choice 0)",
	}
	for _, s := range suggestions {
		info := protocol.SuggestionInfo{ID: s.PlayerID, Confidence: s.Confidence}
		if obs, ok := players[s.PlayerID]; ok {
			info.Box = [4]float64{obs.Box.X1, obs.Box.Y1, obs.Box.X2, obs.Box.Y2}
		}
		req.Suggestions = append(req.Suggestions, info)
	}
	if state := r.reconciler.State(); state != nil {
		if obs, ok := players[state.CurrentID]; ok {
			info := protocol.NewPlayerInfo(obs)
			req.CurrentTracked = &info
		}
	}

	choice, err := r.input.RequestReassignment(ctx, req)
	switch {
	case errors.Is(err, ErrInputTimeout):
		// Timeout is an implicit "no selection" for this cycle only.
		return r.emitter.Status(frameNum, total, fps, "no reassignment received, continuing")
	case errors.Is(err, ErrInvalidResponse):
		return r.emitter.Status(frameNum, total, fps, "invalid reassignment response ignored")
	case err != nil:
		return fmt.Errorf("reassignment at frame %d: %w", frameNum, err)
	}

	var chosen *int
	switch {
	case choice.GiveUp:
		r.reconciler.Abandon()
		return r.emitter.Status(frameNum, total, fps, "continuing without player-specific tracking")
	case choice.PlayerID != nil:
		chosen = choice.PlayerID
	case choice.SuggestionIndex != nil:
		idx := *choice.SuggestionIndex - 1
		if idx >= 0 && idx < len(suggestions) {
			id := suggestions[idx].PlayerID
			chosen = &id
		}
	}

	if chosen == nil {
		return r.emitter.Status(frameNum, total, fps, "no reassignment received, continuing")
	}
	if !r.reconciler.ConfirmReassignment(*chosen, players) {
		return r.emitter.Status(frameNum, total, fps, fmt.Sprintf("invalid reassignment choice: %d", *chosen))
	}
	return r.emitter.Status(frameNum, total, fps, fmt.Sprintf("reassigned to player %d", *chosen))
}

// reportFatal emits an error event, best effort.
func (r *Runner) reportFatal(frameNum int, fps float64, message string) {
	if err := r.emitter.Error(frameNum, fps, message); err != nil {
		log.Warn("failed to emit error event", "error", err)
	}
}
