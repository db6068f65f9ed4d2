// Package track implements the possession and identity-tracking core:
// per-frame ball possession attribution, the reconciliation engine that
// follows a single player through tracker id churn, and the highlight
// possession tally.
package track

import (
	"sort"

	"github.com/goplai/courtside/pkg/geom"
)

// NoPlayer is the sentinel id meaning "no player": no possession, or
// no tracked target.
const NoPlayer = -1

// PlayerObservation is one tracked player in one frame, as reported by
// the upstream player tracker. Ids are tracker-local and may be
// relabeled across occlusions.
type PlayerObservation struct {
	ID         int
	Box        geom.Box
	Center     geom.Point
	Confidence float64
}

// PlayerTrack maps tracker-local player ids to their observation for a
// single frame. Produced fresh each frame; read-only for this package.
type PlayerTrack map[int]PlayerObservation

// IDs returns the player ids present in the frame in ascending order.
func (pt PlayerTrack) IDs() []int {
	ids := make([]int, 0, len(pt))
	for id := range pt {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// BallObservation is the detected ball in one frame. At most one per
// frame; nil pointer means the ball was not detected.
type BallObservation struct {
	Box    geom.Box
	Center geom.Point
}

// HoopObservation is a detected hoop in one frame.
type HoopObservation struct {
	Box    geom.Box
	Center geom.Point
}
