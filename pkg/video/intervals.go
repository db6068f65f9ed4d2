package video

import (
	"github.com/goplai/courtside/pkg/session"
	"github.com/goplai/courtside/pkg/track"
)

// ClipIntervals slices a video into fixed-duration highlight intervals.
// It implements session.IntervalSource.
type ClipIntervals struct {
	// ClipSeconds is the duration of each interval. Zero or negative
	// yields no intervals.
	ClipSeconds float64
}

// Intervals returns consecutive non-overlapping intervals covering the
// whole stream, inclusive on both ends. The final interval is clipped
// to the last frame and may be shorter than ClipSeconds.
func (c ClipIntervals) Intervals(info session.VideoInfo) ([]track.Interval, error) {
	if c.ClipSeconds <= 0 || info.FPS <= 0 || info.FrameCount <= 0 {
		return nil, nil
	}

	clipFrames := int(c.ClipSeconds * info.FPS)
	if clipFrames < 1 {
		clipFrames = 1
	}

	var intervals []track.Interval
	for start := 0; start < info.FrameCount; start += clipFrames {
		end := start + clipFrames - 1
		if end > info.FrameCount-1 {
			end = info.FrameCount - 1
		}
		intervals = append(intervals, track.Interval{Start: start, End: end})
	}
	return intervals, nil
}
