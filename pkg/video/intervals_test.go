package video

import (
	"testing"

	"github.com/goplai/courtside/pkg/session"
	"github.com/goplai/courtside/pkg/track"
)

func TestClipIntervals(t *testing.T) {
	tests := []struct {
		name string
		clip float64
		info session.VideoInfo
		want []track.Interval
	}{
		{
			name: "even split",
			clip: 2,
			info: session.VideoInfo{FrameCount: 120, FPS: 30},
			want: []track.Interval{{Start: 0, End: 59}, {Start: 60, End: 119}},
		},
		{
			name: "trailing partial clip",
			clip: 2,
			info: session.VideoInfo{FrameCount: 70, FPS: 30},
			want: []track.Interval{{Start: 0, End: 59}, {Start: 60, End: 69}},
		},
		{
			name: "clip longer than video",
			clip: 10,
			info: session.VideoInfo{FrameCount: 45, FPS: 30},
			want: []track.Interval{{Start: 0, End: 44}},
		},
		{
			name: "zero duration disables",
			clip: 0,
			info: session.VideoInfo{FrameCount: 100, FPS: 30},
			want: nil,
		},
		{
			name: "unknown frame count",
			clip: 2,
			info: session.VideoInfo{FrameCount: 0, FPS: 30},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClipIntervals{ClipSeconds: tt.clip}.Intervals(tt.info)
			if err != nil {
				t.Fatalf("Intervals() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Intervals() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("interval %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
