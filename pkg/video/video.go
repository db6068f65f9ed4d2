// Package video reads frames from video files and exposes them as an
// ordered JPEG stream.
package video

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/goplai/courtside/pkg/session"
)

// File is a frame source backed by a video file. It is not safe for
// concurrent use; one session owns one File.
type File struct {
	capture *gocv.VideoCapture
	info    session.VideoInfo
	buf     gocv.Mat
	closed  bool
}

// Open opens a video file and probes its stream properties.
func Open(path string) (*File, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("video %s could not be opened", path)
	}

	info := session.VideoInfo{
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
	if info.FPS <= 0 {
		info.FPS = 30
	}

	return &File{
		capture: capture,
		info:    info,
		buf:     gocv.NewMat(),
	}, nil
}

// Next returns the next frame encoded as JPEG, or ok=false at end of
// stream.
func (f *File) Next(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if f.closed {
		return nil, false, fmt.Errorf("video source closed")
	}

	if !f.capture.Read(&f.buf) || f.buf.Empty() {
		return nil, false, nil
	}

	encoded, err := gocv.IMEncode(gocv.JPEGFileExt, f.buf)
	if err != nil {
		return nil, false, fmt.Errorf("encode frame: %w", err)
	}
	defer encoded.Close()

	// The native buffer is freed on Close, so hand back a copy.
	raw := encoded.GetBytes()
	frame := make([]byte, len(raw))
	copy(frame, raw)
	return frame, true, nil
}

// Info returns the probed stream properties.
func (f *File) Info() session.VideoInfo {
	return f.info
}

// Close releases the capture and decode buffers.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	_ = f.buf.Close()
	return f.capture.Close()
}
