package track

import (
	"math"
	"sort"
)

// Interval is a highlight span of frame numbers, inclusive on both
// ends. Intervals are supplied pre-sorted by start and non-overlapping.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Winner identifies the player who held the ball for the most frames of
// a highlight interval.
type Winner struct {
	PlayerID int `json:"player_id"`
	Frames   int `json:"frames"`
}

// HighlightSummary is the finalized possession breakdown for one
// interval. Winner is nil when no possession frames were recorded.
type HighlightSummary struct {
	Interval         [2]int      `json:"interval"`
	StartTime        float64     `json:"start_time"`
	EndTime          float64     `json:"end_time"`
	Duration         float64     `json:"duration"`
	Possessions      map[int]int `json:"possessions"`
	Winner           *Winner     `json:"winner"`
	TrackedPlayerWon bool        `json:"tracked_player_won"`
}

// Summary is the whole-session result emitted at completion.
type Summary struct {
	ProcessedFrames         int                `json:"processed_frames"`
	TotalFrames             int                `json:"total_frames"`
	ProcessingFPS           float64            `json:"processing_fps"`
	TrackedPlayerIDs        []int              `json:"tracked_player_ids"`
	TrackedPlayerHighlights int                `json:"tracked_player_highlights"`
	TotalHighlights         int                `json:"total_highlights"`
	Highlights              []HighlightSummary `json:"highlights"`
}

// HighlightAccumulator tallies possession frames inside highlight
// intervals. Intervals are consumed FIFO: once the frame stream passes
// an interval's end it is dropped and never revisited, so Observe
// assumes monotonically non-decreasing frame numbers.
type HighlightAccumulator struct {
	order   []Interval
	pending []Interval
	counts  map[Interval]map[int]int
}

// NewHighlightAccumulator creates an accumulator over pre-sorted,
// non-overlapping intervals.
func NewHighlightAccumulator(intervals []Interval) *HighlightAccumulator {
	order := make([]Interval, len(intervals))
	copy(order, intervals)
	pending := make([]Interval, len(intervals))
	copy(pending, intervals)

	counts := make(map[Interval]map[int]int, len(intervals))
	for _, iv := range intervals {
		counts[iv] = make(map[int]int)
	}
	return &HighlightAccumulator{
		order:   order,
		pending: pending,
		counts:  counts,
	}
}

// Observe records one frame's possession result. Frames outside the
// head interval, or with no possession, leave the tally unchanged.
func (a *HighlightAccumulator) Observe(frameNum, possessionID int) {
	if len(a.pending) == 0 {
		return
	}
	head := a.pending[0]
	if possessionID != NoPlayer && frameNum >= head.Start && frameNum <= head.End {
		a.counts[head][possessionID]++
	}
	for len(a.pending) > 0 && frameNum > a.pending[0].End {
		a.pending = a.pending[1:]
	}
}

// Finalize builds the session summary. idHistory is the reconciler's
// set of confirmed target ids; an interval counts as won by the tracked
// player when its winner appears there. Winner ties break to the lowest
// player id.
func (a *HighlightAccumulator) Finalize(processedFrames, totalFrames int, fps float64, idHistory []int) Summary {
	tracked := make(map[int]struct{}, len(idHistory))
	for _, id := range idHistory {
		tracked[id] = struct{}{}
	}

	highlights := make([]HighlightSummary, 0, len(a.order))
	trackedWins := 0
	total := 0
	for _, iv := range a.order {
		hs := HighlightSummary{
			Interval:    [2]int{iv.Start, iv.End},
			StartTime:   roundTime(float64(iv.Start), fps),
			EndTime:     roundTime(float64(iv.End), fps),
			Duration:    roundTime(float64(iv.End-iv.Start), fps),
			Possessions: a.counts[iv],
		}
		if winner := intervalWinner(a.counts[iv]); winner != nil {
			total++
			_, won := tracked[winner.PlayerID]
			if won {
				trackedWins++
			}
			hs.Winner = winner
			hs.TrackedPlayerWon = won
		}
		highlights = append(highlights, hs)
	}

	return Summary{
		ProcessedFrames:         processedFrames,
		TotalFrames:             totalFrames,
		ProcessingFPS:           fps,
		TrackedPlayerIDs:        idHistory,
		TrackedPlayerHighlights: trackedWins,
		TotalHighlights:         total,
		Highlights:              highlights,
	}
}

func intervalWinner(counts map[int]int) *Winner {
	if len(counts) == 0 {
		return nil
	}
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	winner := Winner{PlayerID: NoPlayer}
	for _, id := range ids {
		if counts[id] > winner.Frames {
			winner = Winner{PlayerID: id, Frames: counts[id]}
		}
	}
	return &winner
}

func roundTime(frames, fps float64) float64 {
	if fps == 0 {
		return 0
	}
	return math.Round(frames/fps*100) / 100
}
