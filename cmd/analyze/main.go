// analyze: offline single-video analysis. Runs the full tracking
// pipeline against a local file, prompting for decisions on stdin, and
// prints the summary as JSON on stdout.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/goplai/courtside/internal/config"
	"github.com/goplai/courtside/internal/log"
	"github.com/goplai/courtside/pkg/protocol"
	"github.com/goplai/courtside/pkg/session"
	"github.com/goplai/courtside/pkg/track"
	"github.com/goplai/courtside/pkg/video"
	"github.com/goplai/courtside/pkg/vision"
)

var (
	playerModel = flag.String("player-model", "", "player detection model path")
	ballModel   = flag.String("ball-model", "", "ball detection model path")
	clipSeconds = flag.Float64("clip-seconds", 0, "highlight clip duration in seconds")
)

func main() {
	flag.Parse()
	log.Init(config.LogLevel())

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: analyze [flags] <video file>")
		os.Exit(2)
	}
	if err := run(flag.Arg(0)); err != nil {
		log.Error("analysis failed", "error", err)
		os.Exit(1)
	}
}

func run(path string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source, err := video.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	modelPath := *playerModel
	if modelPath == "" {
		modelPath = config.PlayerModelPath()
	}
	playerDetector, err := vision.NewDetector(detectorConfig(modelPath))
	if err != nil {
		return err
	}
	defer playerDetector.Close()

	ballDetector := playerDetector
	ballPath := *ballModel
	if ballPath == "" {
		ballPath = config.BallModelPath()
	}
	if ballPath != "" && ballPath != modelPath {
		ballDetector, err = vision.NewDetector(detectorConfig(ballPath))
		if err != nil {
			return err
		}
		defer ballDetector.Close()
	}

	clip := *clipSeconds
	if clip == 0 {
		clip = config.HighlightClipSeconds()
	}
	intervals, err := video.ClipIntervals{ClipSeconds: clip}.Intervals(source.Info())
	if err != nil {
		return err
	}

	players := vision.NewPlayerMotionTracker(playerDetector, vision.PersonClassID, vision.DefaultTrackerConfig())
	ball := vision.NewBallMotionTracker(ballDetector, vision.BallClassID, vision.NoClass, vision.DefaultTrackerConfig())

	runner := session.NewRunner(session.DefaultRunnerConfig(), source, players, ball, intervals,
		&stdinInput{reader: bufio.NewReader(os.Stdin)}, &consoleEmitter{})

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

func detectorConfig(modelPath string) vision.DetectorConfig {
	cfg := vision.DefaultDetectorConfig()
	cfg.ModelPath = modelPath
	return cfg
}

// consoleEmitter writes progress to stderr so stdout stays pure JSON.
type consoleEmitter struct{}

func (consoleEmitter) Status(frameNum, frameTotal int, fps float64, message string) error {
	fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", frameNum, frameTotal, message)
	return nil
}

func (consoleEmitter) Heartbeat() error { return nil }

func (consoleEmitter) Error(frameNum int, fps float64, message string) error {
	fmt.Fprintf(os.Stderr, "error at frame %d: %s\n", frameNum, message)
	return nil
}

func (consoleEmitter) Completed(frameNum int, fps float64, summary track.Summary) error {
	return nil
}

// stdinInput answers tracking decisions interactively.
type stdinInput struct {
	reader *bufio.Reader
}

func (s *stdinInput) RequestPlayerSelection(ctx context.Context, req protocol.UserInputRequest) (*int, error) {
	fmt.Fprintf(os.Stderr, "\n%s\n", req.Message)
	for _, p := range req.AvailablePlayers {
		fmt.Fprintf(os.Stderr, "  player %d  center=(%.0f, %.0f)\n", p.ID, p.Center[0], p.Center[1])
	}
	fmt.Fprint(os.Stderr, "player id (empty to skip): ")
	id, ok := s.readInt()
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (s *stdinInput) RequestConfirmation(ctx context.Context, req protocol.UserInputRequest) (bool, error) {
	fmt.Fprintf(os.Stderr, "\n%s [y/N]: ", req.Message)
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return false, session.ErrInputTimeout
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y"), nil
}

func (s *stdinInput) RequestReassignment(ctx context.Context, req protocol.UserInputRequest) (session.ReassignmentChoice, error) {
	fmt.Fprintf(os.Stderr, "\n%s\n", req.Message)
	for i, sg := range req.Suggestions {
		fmt.Fprintf(os.Stderr, "  %d) player %d  confidence=%.2f\n", i+1, sg.ID, sg.Confidence)
	}
	fmt.Fprint(os.Stderr, "choice (0 to stop tracking, empty to wait): ")
	choice, ok := s.readInt()
	if !ok {
		return session.ReassignmentChoice{}, nil
	}
	if choice == 0 {
		return session.ReassignmentChoice{GiveUp: true}, nil
	}
	if choice >= 1 && choice <= len(req.Suggestions) {
		return session.ReassignmentChoice{SuggestionIndex: &choice}, nil
	}
	return session.ReassignmentChoice{PlayerID: &choice}, nil
}

func (s *stdinInput) readInt() (int, bool) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return 0, false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, false
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, false
	}
	return n, true
}
