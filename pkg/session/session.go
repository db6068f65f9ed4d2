package session

import (
	"time"

	"github.com/google/uuid"
)

// Status is a session lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Session is one uploaded video and its processing lifecycle.
type Session struct {
	ID               string
	VideoPath        string
	OriginalFilename string
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewSession creates a session record for an uploaded video.
func NewSession(videoPath, originalFilename string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:               uuid.NewString(),
		VideoPath:        videoPath,
		OriginalFilename: originalFilename,
		Status:           StatusCreated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
