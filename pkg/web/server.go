// Package web exposes the session HTTP API and the per-session
// WebSocket processing channel.
package web

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"github.com/goplai/courtside/internal/config"
	"github.com/goplai/courtside/internal/log"
	"github.com/goplai/courtside/pkg/session"
	"github.com/goplai/courtside/pkg/video"
	"github.com/goplai/courtside/pkg/vision"
)

// ServerConfig holds the HTTP server and pipeline wiring parameters.
type ServerConfig struct {
	Port      string
	UploadDir string

	PlayerModelPath string
	BallModelPath   string
	BallClassID     int
	HoopClassID     int

	ClipSeconds       float64
	InputTimeout      time.Duration
	HeartbeatInterval time.Duration

	Runner session.RunnerConfig
}

// DefaultServerConfig returns the environment-driven defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:              config.Port(),
		UploadDir:         config.UploadDir(),
		PlayerModelPath:   config.PlayerModelPath(),
		BallModelPath:     config.BallModelPath(),
		BallClassID:       vision.BallClassID,
		HoopClassID:       vision.NoClass,
		ClipSeconds:       config.HighlightClipSeconds(),
		InputTimeout:      config.UserInputTimeout,
		HeartbeatInterval: config.HeartbeatInterval,
		Runner:            session.DefaultRunnerConfig(),
	}
}

// Server serves session management over HTTP and runs the processing
// pipeline over per-session WebSocket connections.
type Server struct {
	app    *fiber.App
	config ServerConfig
	store  *session.Store

	mu     sync.Mutex
	active map[string]struct{}
}

// NewServer wires the routes.
func NewServer(cfg ServerConfig, store *session.Store) *Server {
	s := &Server{
		config: cfg,
		store:  store,
		active: make(map[string]struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "courtside",
		DisableStartupMessage: true,
		BodyLimit:             512 * 1024 * 1024,
	})
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Post("/sessions", s.handleCreateSession)
	app.Get("/sessions/:id", s.handleGetSession)
	app.Get("/sessions/:id/summary", s.handleGetSummary)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:session_id", websocket.New(s.handleSessionWS))

	s.app = app
	return s
}

// Listen blocks serving HTTP until shutdown.
func (s *Server) Listen() error {
	log.Info("server listening", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleCreateSession accepts a multipart video upload and registers a
// session for it.
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	file, err := c.FormFile("video")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing video file",
		})
	}

	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return fmt.Errorf("ensure upload dir: %w", err)
	}
	dest := filepath.Join(s.config.UploadDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, dest); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}

	sess := session.NewSession(dest, file.Filename)
	sess.Status = session.StatusUploaded
	if err := s.store.Create(c.Context(), sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	log.Info("session created", "session_id", sess.ID, "filename", file.Filename)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": sess.ID,
		"filename":   file.Filename,
		"status":     sess.Status,
	})
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.store.Get(c.Context(), c.Params("id"))
	if errors.Is(err, session.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"session_id": sess.ID,
		"filename":   sess.OriginalFilename,
		"status":     sess.Status,
		"created_at": sess.CreatedAt,
		"updated_at": sess.UpdatedAt,
	})
}

func (s *Server) handleGetSummary(c *fiber.Ctx) error {
	summary, err := s.store.GetSummary(c.Context(), c.Params("id"))
	if errors.Is(err, session.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "summary not found"})
	}
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// handleSessionWS runs the processing pipeline for one session over the
// socket. The connection owns the run: a disconnect cancels it and
// nothing partial is persisted.
func (s *Server) handleSessionWS(conn *websocket.Conn) {
	sessionID := conn.Params("session_id")
	defer conn.Close()

	if !s.acquire(sessionID) {
		log.Warn("session already processing", "session_id", sessionID)
		return
	}
	defer s.release(sessionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	link := &wsConn{conn: conn}
	responses := readResponses(conn, cancel)
	emitter := &wsEmitter{send: link.Send}
	input := &wsInput{
		send:      link.Send,
		responses: responses,
		timeout:   s.config.InputTimeout,
		heartbeat: s.config.HeartbeatInterval,
	}

	if err := s.runSession(ctx, sessionID, input, emitter); err != nil {
		log.Error("session run failed", "session_id", sessionID, "error", err)
	}
}

// runSession assembles the pipeline for a stored session and drives it
// to completion, persisting the summary on success.
func (s *Server) runSession(ctx context.Context, sessionID string, input session.InputProvider, emitter session.Emitter) error {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		_ = emitter.Error(0, 0, fmt.Sprintf("unknown session %s", sessionID))
		return err
	}

	source, err := video.Open(sess.VideoPath)
	if err != nil {
		_ = emitter.Error(0, 0, "video could not be opened")
		return err
	}
	defer source.Close()

	players, ball, closeDetectors, err := s.buildTrackers()
	if err != nil {
		_ = emitter.Error(0, 0, "detection backend unavailable")
		return err
	}
	defer closeDetectors()

	intervals, err := video.ClipIntervals{ClipSeconds: s.config.ClipSeconds}.Intervals(source.Info())
	if err != nil {
		return fmt.Errorf("build intervals: %w", err)
	}

	if err := s.store.SetStatus(ctx, sessionID, session.StatusProcessing); err != nil {
		return err
	}

	runner := session.NewRunner(s.config.Runner, source, players, ball, intervals, input, emitter)
	summary, err := runner.Run(ctx)
	if err != nil {
		// Cancellation leaves the session re-runnable; real failures
		// mark it errored.
		status := session.StatusError
		if errors.Is(err, context.Canceled) {
			status = session.StatusUploaded
		}
		if serr := s.store.SetStatus(context.Background(), sessionID, status); serr != nil {
			log.Warn("failed to update session status", "session_id", sessionID, "error", serr)
		}
		return err
	}

	if err := s.store.SaveSummary(ctx, sessionID, *summary); err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}
	if err := s.store.SetStatus(ctx, sessionID, session.StatusCompleted); err != nil {
		return err
	}

	s.cleanupUpload(sess.VideoPath)
	log.Info("session completed", "session_id", sessionID,
		"frames", summary.ProcessedFrames, "highlights", summary.TotalHighlights)
	return nil
}

// buildTrackers loads the detection models and wraps them in motion
// trackers. The ball model falls back to the player model when not
// configured separately.
func (s *Server) buildTrackers() (session.PlayerTracker, session.BallTracker, func(), error) {
	playerDetector, err := vision.NewDetector(withModel(vision.DefaultDetectorConfig(), s.config.PlayerModelPath))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load player model: %w", err)
	}

	ballDetector := playerDetector
	if s.config.BallModelPath != "" && s.config.BallModelPath != s.config.PlayerModelPath {
		ballDetector, err = vision.NewDetector(withModel(vision.DefaultDetectorConfig(), s.config.BallModelPath))
		if err != nil {
			_ = playerDetector.Close()
			return nil, nil, nil, fmt.Errorf("load ball model: %w", err)
		}
	}

	closeAll := func() {
		_ = playerDetector.Close()
		if ballDetector != playerDetector {
			_ = ballDetector.Close()
		}
	}

	players := vision.NewPlayerMotionTracker(playerDetector, vision.PersonClassID, vision.DefaultTrackerConfig())
	ball := vision.NewBallMotionTracker(ballDetector, s.config.BallClassID, s.config.HoopClassID, vision.DefaultTrackerConfig())
	return players, ball, closeAll, nil
}

func withModel(cfg vision.DetectorConfig, path string) vision.DetectorConfig {
	cfg.ModelPath = path
	return cfg
}

// cleanupUpload removes a processed upload. Failures are logged, never
// propagated.
func (s *Server) cleanupUpload(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove processed upload", "path", path, "error", err)
	}
}

func (s *Server) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[sessionID]; busy {
		return false
	}
	s.active[sessionID] = struct{}{}
	return true
}

func (s *Server) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, sessionID)
}
