// Package config provides configuration helpers for courtside commands.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server defaults.
const (
	DefaultPort      = "8000"
	DefaultDataDir   = "data"
	DefaultUploadDir = "uploads"
)

// Timeouts governing a processing session.
const (
	// UserInputTimeout is how long the frame loop waits for a human
	// response before treating it as "no selection".
	UserInputTimeout = 5 * time.Minute

	// HeartbeatInterval is how often heartbeats are sent while the loop
	// is blocked on user input.
	HeartbeatInterval = 30 * time.Second

	// MaxProcessingGap is the longest the loop may go without emitting
	// anything before a heartbeat is forced.
	MaxProcessingGap = 5 * time.Second

	// ProgressEvery is the frame cadence of status updates.
	ProgressEvery = 10
)

// Port returns the HTTP listen port from COURTSIDE_PORT.
// Falls back to DefaultPort if not set.
func Port() string {
	if p := os.Getenv("COURTSIDE_PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// DataDir returns the directory for the session database from COURTSIDE_DATA_DIR.
func DataDir() string {
	if d := os.Getenv("COURTSIDE_DATA_DIR"); d != "" {
		return d
	}
	return DefaultDataDir
}

// UploadDir returns the directory for uploaded videos from COURTSIDE_UPLOAD_DIR.
func UploadDir() string {
	if d := os.Getenv("COURTSIDE_UPLOAD_DIR"); d != "" {
		return d
	}
	return DefaultUploadDir
}

// PlayerModelPath returns the ONNX model path for player detection.
func PlayerModelPath() string {
	if p := os.Getenv("COURTSIDE_PLAYER_MODEL"); p != "" {
		return p
	}
	return "models/yolov8n.onnx"
}

// BallModelPath returns the ONNX model path for ball/hoop detection.
func BallModelPath() string {
	if p := os.Getenv("COURTSIDE_BALL_MODEL"); p != "" {
		return p
	}
	return "models/ball_hoop.onnx"
}

// LogLevel returns the log level from COURTSIDE_LOG_LEVEL or "info".
func LogLevel() string {
	if l := os.Getenv("COURTSIDE_LOG_LEVEL"); l != "" {
		return l
	}
	return "info"
}

// HighlightClipSeconds returns the clip duration used when deriving
// highlight intervals from COURTSIDE_CLIP_SECONDS, defaulting to 5.
func HighlightClipSeconds() float64 {
	if s := os.Getenv("COURTSIDE_CLIP_SECONDS"); s != "" {
		if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
			return n
		}
	}
	return 5
}
