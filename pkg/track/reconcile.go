package track

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/goplai/courtside/pkg/geom"
)

// ReconcilerConfig holds the tunable parameters for identity
// reconciliation.
type ReconcilerConfig struct {
	// MaxLostFrames is how many consecutive absent frames are tolerated
	// before the target counts as fully lost (and, under a temporary
	// assignment, how long the original may stay absent before the
	// substitute needs permanence confirmation).
	MaxLostFrames int

	// ConfidenceThreshold is the minimum confidence for a silent
	// automatic reassignment.
	ConfidenceThreshold float64

	// MaxReassignmentDistance normalizes the spatial confidence factor:
	// candidates this far from the predicted position score zero.
	MaxReassignmentDistance float64

	// HistoryLength bounds the position history used for velocity
	// estimation.
	HistoryLength int
}

// DefaultReconcilerConfig returns the recommended reconciliation
// parameters.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		MaxLostFrames:           30,
		ConfidenceThreshold:     0.7,
		MaxReassignmentDistance: 150,
		HistoryLength:           10,
	}
}

// Confidence factor weights. Weights are deliberately not renormalized
// when the velocity factor is unavailable: a candidate with no
// displacement history can score at most spatialWeight.
const (
	spatialWeight  = 0.6
	velocityWeight = 0.4

	// velocityNorm normalizes the velocity-consistency factor.
	velocityNorm = 100.0

	// velocityWindow is how many recent displacements feed the velocity
	// estimate.
	velocityWindow = 4
)

// TrackingState is the reconciliation engine's view of "who we are
// following". Exactly one exists per session once tracking is
// initialized.
type TrackingState struct {
	// OriginalID is the human-confirmed real target identity. It
	// changes only when a temporary assignment is confirmed permanent.
	OriginalID int

	// CurrentID is the id currently believed to be the target. NoPlayer
	// means nobody is being tracked.
	CurrentID int

	// Confidence in [0, 1] that CurrentID is correct.
	Confidence float64

	// LostFrames counts consecutive frames CurrentID has been absent.
	LostFrames int

	// OriginalLostFrames counts consecutive frames OriginalID has been
	// absent; it keeps counting while a substitute is tracked.
	OriginalLostFrames int

	// LastKnownPosition is the target's most recent observed center.
	LastKnownPosition geom.Point

	// PositionHistory holds recent centers, most recent last, bounded
	// by HistoryLength.
	PositionHistory []geom.Point

	// VelocityEstimate is the average frame-to-frame displacement, nil
	// until enough history exists.
	VelocityEstimate *geom.Point

	// IDHistory is every id ever confirmed as being the real target.
	IDHistory map[int]struct{}

	// IsTemporaryAssignment is true while CurrentID stands in for an
	// absent OriginalID without permanent confirmation.
	IsTemporaryAssignment bool
}

// Suggestion is one candidate for manual reassignment.
type Suggestion struct {
	PlayerID   int
	Confidence float64
}

// Reconciler maintains a single logical tracked-player identity across
// tracker id churn. It prefers the human-confirmed original identity
// whenever it is visible, silently bridges short gaps with
// confidence-scored substitutes, and asks for human confirmation when
// automatic recovery is not trustworthy.
type Reconciler struct {
	config ReconcilerConfig
	state  *TrackingState
}

// NewReconciler creates a reconciler in the uninitialized state.
func NewReconciler(config ReconcilerConfig) *Reconciler {
	return &Reconciler{config: config}
}

// Config returns the reconciler's configuration.
func (r *Reconciler) Config() ReconcilerConfig {
	return r.config
}

// State returns the current tracking state, or nil before
// InitializeTracking.
func (r *Reconciler) State() *TrackingState {
	return r.state
}

// Initialized reports whether a target has been selected.
func (r *Reconciler) Initialized() bool {
	return r.state != nil
}

// InitializeTracking starts following the given player with full
// confidence.
func (r *Reconciler) InitializeTracking(playerID int, position geom.Point) {
	r.state = &TrackingState{
		OriginalID:        playerID,
		CurrentID:         playerID,
		Confidence:        1.0,
		LastKnownPosition: position,
		PositionHistory:   []geom.Point{position},
		IDHistory:         map[int]struct{}{playerID: {}},
	}
}

// UpdateTracking is the per-frame transition function. It returns the
// id currently attributed to the target (NoPlayer if none), a status
// message, and whether human input is required before tracking can
// proceed confidently.
func (r *Reconciler) UpdateTracking(players PlayerTrack) (int, string, bool) {
	if r.state == nil {
		return NoPlayer, "tracking not initialized", false
	}
	s := r.state

	// The original identity always wins the instant it reappears.
	if obs, ok := players[s.OriginalID]; ok && s.CurrentID != s.OriginalID {
		confidence := r.CalculateConfidence(obs, r.PredictNextPosition())
		s.CurrentID = s.OriginalID
		s.IsTemporaryAssignment = false
		s.LostFrames = 0
		s.OriginalLostFrames = 0
		s.Confidence = confidence
		r.pushPosition(obs.Center)
		return s.CurrentID, fmt.Sprintf("original player %d returned", s.OriginalID), false
	}

	if obs, ok := players[s.CurrentID]; ok && s.CurrentID != NoPlayer {
		s.Confidence = r.CalculateConfidence(obs, r.PredictNextPosition())
		s.LostFrames = 0
		r.pushPosition(obs.Center)

		if s.IsTemporaryAssignment {
			s.OriginalLostFrames++
			if s.OriginalLostFrames > r.config.MaxLostFrames {
				msg := fmt.Sprintf("confirm temporary assignment: keep tracking player %d as permanent replacement for %d?",
					s.CurrentID, s.OriginalID)
				return s.CurrentID, msg, true
			}
			msg := fmt.Sprintf("tracking temporary substitute %d, original lost for %d/%d frames",
				s.CurrentID, s.OriginalLostFrames, r.config.MaxLostFrames)
			return s.CurrentID, msg, false
		}
		return s.CurrentID, "tracking normally", false
	}

	if s.CurrentID == NoPlayer {
		// Untracked: stays that way until an explicit confirmation or
		// re-initialization.
		return NoPlayer, "untracked", false
	}

	s.LostFrames++
	if s.IsTemporaryAssignment {
		s.OriginalLostFrames++
	} else {
		s.OriginalLostFrames = s.LostFrames
	}

	if s.LostFrames <= r.config.MaxLostFrames {
		candidate, confidence := r.FindBestCandidate(players)
		if candidate != NoPlayer {
			previous := s.CurrentID
			s.CurrentID = candidate
			s.IsTemporaryAssignment = candidate != s.OriginalID
			s.Confidence = confidence
			s.LostFrames = 0
			r.pushPosition(players[candidate].Center)
			msg := fmt.Sprintf("reassigned from %d to %d (confidence %.2f)", previous, candidate, confidence)
			return candidate, msg, false
		}
		msg := fmt.Sprintf("player lost for %d/%d frames, no candidate above threshold",
			s.LostFrames, r.config.MaxLostFrames)
		return NoPlayer, msg, true
	}

	msg := fmt.Sprintf("player lost for %d frames, need user selection", s.LostFrames)
	return NoPlayer, msg, true
}

// CalculateConfidence scores how likely an observation is the tracked
// target, in [0, 1]. The spatial factor compares the observation
// against the predicted (or last known) position; the velocity factor
// compares the implied displacement against the velocity estimate and
// only contributes once displacement history exists.
func (r *Reconciler) CalculateConfidence(obs PlayerObservation, predicted geom.Point) float64 {
	if r.state == nil {
		return 0
	}
	s := r.state

	distance := obs.Center.Distance(predicted)
	spatial := 1 - distance/r.config.MaxReassignmentDistance
	if spatial < 0 {
		spatial = 0
	}
	confidence := spatial * spatialWeight

	if s.VelocityEstimate != nil && len(s.PositionHistory) >= 2 {
		last := s.PositionHistory[len(s.PositionHistory)-1]
		observed := obs.Center.Sub(last)
		diff := observed.Distance(*s.VelocityEstimate)
		consistency := 1 - diff/velocityNorm
		if consistency < 0 {
			consistency = 0
		}
		confidence += consistency * velocityWeight
	}
	return confidence
}

// PredictNextPosition extrapolates the target's position one frame
// ahead from the average of the most recent displacements. With fewer
// than two history points it returns the last known position. The
// velocity estimate is stored as a side effect for the consistency
// factor on subsequent calls.
func (r *Reconciler) PredictNextPosition() geom.Point {
	if r.state == nil {
		return geom.Point{}
	}
	s := r.state
	if len(s.PositionHistory) < 2 {
		return s.LastKnownPosition
	}

	start := len(s.PositionHistory) - 1 - velocityWindow
	if start < 0 {
		start = 0
	}
	recent := s.PositionHistory[start:]

	vxs := make([]float64, 0, len(recent)-1)
	vys := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		vxs = append(vxs, recent[i].X-recent[i-1].X)
		vys = append(vys, recent[i].Y-recent[i-1].Y)
	}

	velocity := geom.NewPoint(stat.Mean(vxs, nil), stat.Mean(vys, nil))
	s.VelocityEstimate = &velocity
	return s.PositionHistory[len(s.PositionHistory)-1].Add(velocity)
}

// FindBestCandidate scores every observed player and returns the best
// one clearing the confidence threshold, or NoPlayer. Ties break to the
// lowest id.
func (r *Reconciler) FindBestCandidate(players PlayerTrack) (int, float64) {
	if r.state == nil {
		return NoPlayer, 0
	}
	predicted := r.PredictNextPosition()

	best := NoPlayer
	bestConfidence := 0.0
	for _, id := range players.IDs() {
		confidence := r.CalculateConfidence(players[id], predicted)
		if confidence > bestConfidence && confidence > r.config.ConfidenceThreshold {
			best = id
			bestConfidence = confidence
		}
	}
	return best, bestConfidence
}

// ReassignmentSuggestions returns up to topN candidates ordered by
// descending confidence, for presentation to a human. Equal confidences
// order by ascending id.
func (r *Reconciler) ReassignmentSuggestions(players PlayerTrack, topN int) []Suggestion {
	if r.state == nil || topN <= 0 {
		return nil
	}
	predicted := r.PredictNextPosition()

	suggestions := make([]Suggestion, 0, len(players))
	for _, id := range players.IDs() {
		suggestions = append(suggestions, Suggestion{
			PlayerID:   id,
			Confidence: r.CalculateConfidence(players[id], predicted),
		})
	}

	// Stable keeps equal confidences in ascending id order.
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})

	if len(suggestions) > topN {
		suggestions = suggestions[:topN]
	}
	return suggestions
}

// ConfirmReassignment applies a human-chosen target. Human overrides
// always get full confidence. Choosing an id absent from the current
// frame is a no-op returning false.
func (r *Reconciler) ConfirmReassignment(playerID int, players PlayerTrack) bool {
	if r.state == nil {
		return false
	}
	obs, ok := players[playerID]
	if !ok {
		return false
	}
	s := r.state
	s.CurrentID = playerID
	s.IsTemporaryAssignment = playerID != s.OriginalID
	s.LostFrames = 0
	s.OriginalLostFrames = 0
	s.Confidence = 1.0
	r.pushPosition(obs.Center)
	return true
}

// ConfirmTemporaryAsPermanent promotes the current substitute to the
// new original identity and records it in the id history. Returns false
// if no temporary assignment is active.
func (r *Reconciler) ConfirmTemporaryAsPermanent() bool {
	if r.state == nil || !r.state.IsTemporaryAssignment {
		return false
	}
	s := r.state
	s.OriginalID = s.CurrentID
	s.IsTemporaryAssignment = false
	s.OriginalLostFrames = 0
	s.Confidence = 1.0
	s.IDHistory[s.OriginalID] = struct{}{}
	return true
}

// DenyTemporaryAssignment rejects the current substitute, reverting to
// the (absent) original and forcing both lost counters past the
// threshold so the next update requests a fresh manual selection.
// Idempotent.
func (r *Reconciler) DenyTemporaryAssignment() bool {
	if r.state == nil {
		return false
	}
	s := r.state
	s.CurrentID = s.OriginalID
	s.IsTemporaryAssignment = false
	s.LostFrames = r.config.MaxLostFrames + 1
	s.OriginalLostFrames = r.config.MaxLostFrames + 1
	return true
}

// Abandon gives up tracking entirely. Subsequent updates report
// untracked without requesting input until ConfirmReassignment or
// InitializeTracking.
func (r *Reconciler) Abandon() {
	if r.state == nil {
		return
	}
	r.state.CurrentID = NoPlayer
	r.state.IsTemporaryAssignment = false
	r.state.Confidence = 0
}

// IDHistory returns every id ever confirmed as the real target, in
// ascending order. Empty before initialization.
func (r *Reconciler) IDHistory() []int {
	if r.state == nil {
		return nil
	}
	ids := make([]int, 0, len(r.state.IDHistory))
	for id := range r.state.IDHistory {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r *Reconciler) pushPosition(position geom.Point) {
	s := r.state
	s.PositionHistory = append(s.PositionHistory, position)
	if len(s.PositionHistory) > r.config.HistoryLength {
		s.PositionHistory = s.PositionHistory[len(s.PositionHistory)-r.config.HistoryLength:]
	}
	s.LastKnownPosition = position
}
