package track

import (
	"math"

	"github.com/goplai/courtside/pkg/geom"
)

// PossessionConfig holds the tunable parameters for ball-possession
// attribution.
type PossessionConfig struct {
	// PossessionThreshold is the maximum key-point distance (px) at
	// which a non-containing player can still be the possession
	// candidate.
	PossessionThreshold float64

	// ContainmentThreshold is the ball-containment ratio above which a
	// player is a high-containment candidate.
	ContainmentThreshold float64

	// MinFrames is the consecutive-frame run a candidate must hold
	// before possession is confirmed.
	MinFrames int
}

// DefaultPossessionConfig returns the recommended possession parameters.
func DefaultPossessionConfig() PossessionConfig {
	return PossessionConfig{
		PossessionThreshold:  50,
		ContainmentThreshold: 0.7,
		MinFrames:            10,
	}
}

// PossessionDetector decides, frame by frame, which player holds the
// ball. A new candidate must stay the per-frame best for MinFrames
// consecutive frames before the confirmed possession switches to them;
// until then the previous confirmed value is emitted. On frames where
// the ball is not detected the previous result carries over unchanged.
type PossessionDetector struct {
	config PossessionConfig

	confirmed    int // last confirmed possession id
	runCandidate int // current per-frame best candidate
	runLength    int // consecutive frames runCandidate has been best

	history []int
}

// NewPossessionDetector creates a detector with the given config.
func NewPossessionDetector(config PossessionConfig) *PossessionDetector {
	return &PossessionDetector{
		config:       config,
		confirmed:    NoPlayer,
		runCandidate: NoPlayer,
	}
}

// ProcessFrame returns the confirmed possession id for this frame, or
// NoPlayer. Must be called once per frame in order.
func (d *PossessionDetector) ProcessFrame(players PlayerTrack, ball *BallObservation) int {
	if ball == nil || ball.Box.Empty() {
		// Ball dropout: possession persists visually.
		d.history = append(d.history, d.confirmed)
		return d.confirmed
	}

	best := d.bestCandidate(players, ball)
	if best != NoPlayer {
		if best == d.runCandidate {
			d.runLength++
		} else {
			d.runCandidate = best
			d.runLength = 1
		}
		if d.runLength >= d.config.MinFrames {
			d.confirmed = best
		}
	} else {
		d.runCandidate = NoPlayer
		d.runLength = 0
	}

	d.history = append(d.history, d.confirmed)
	return d.confirmed
}

// History returns the confirmed possession id for every frame processed
// so far, in order.
func (d *PossessionDetector) History() []int {
	return d.history
}

// bestCandidate picks the most likely holder for a single frame.
// High-containment players take priority; among them the one with the
// largest key-point distance wins (most centrally contained). Otherwise
// the closest player within PossessionThreshold wins. Ties break to the
// lowest id.
func (d *PossessionDetector) bestCandidate(players PlayerTrack, ball *BallObservation) int {
	contained := NoPlayer
	containedDist := math.Inf(-1)
	closest := NoPlayer
	closestDist := math.Inf(1)

	for _, id := range players.IDs() {
		obs := players[id]
		if obs.Box.Empty() {
			continue
		}

		containment := obs.Box.ContainmentRatio(ball.Box)
		dist := minKeyPointDistance(ball.Center, obs.Box)

		if containment > d.config.ContainmentThreshold {
			if dist > containedDist {
				contained = id
				containedDist = dist
			}
		} else if dist < closestDist {
			closest = id
			closestDist = dist
		}
	}

	if contained != NoPlayer {
		return contained
	}
	if closest != NoPlayer && closestDist < d.config.PossessionThreshold {
		return closest
	}
	return NoPlayer
}

// minKeyPointDistance returns the smallest distance from the ball
// center to any anchor point on the player's bounding box. Anchors on
// the box boundary and center are more robust than center-to-center
// distance for tall player boxes.
func minKeyPointDistance(ballCenter geom.Point, playerBox geom.Box) float64 {
	minDist := math.Inf(1)
	for _, p := range keyAssignmentPoints(playerBox, ballCenter) {
		if d := ballCenter.Distance(p); d < minDist {
			minDist = d
		}
	}
	return minDist
}

// keyAssignmentPoints computes the anchor points for a player box. When
// the ball center overlaps the box horizontally or vertically, the
// boundary points aligned with the ball center are included as well.
func keyAssignmentPoints(box geom.Box, ballCenter geom.Point) []geom.Point {
	midX := box.X1 + box.Width()/2
	midY := box.Y1 + box.Height()/2

	points := make([]geom.Point, 0, 14)
	if ballCenter.Y > box.Y1 && ballCenter.Y < box.Y2 {
		points = append(points,
			geom.NewPoint(box.X1, ballCenter.Y),
			geom.NewPoint(box.X2, ballCenter.Y),
		)
	}
	if ballCenter.X > box.X1 && ballCenter.X < box.X2 {
		points = append(points,
			geom.NewPoint(ballCenter.X, box.Y1),
			geom.NewPoint(ballCenter.X, box.Y2),
		)
	}

	points = append(points,
		geom.NewPoint(midX, box.Y1),                      // top center
		geom.NewPoint(box.X2, box.Y1),                    // top right
		geom.NewPoint(box.X1, box.Y1),                    // top left
		geom.NewPoint(box.X2, midY),                      // center right
		geom.NewPoint(box.X1, midY),                      // center left
		geom.NewPoint(midX, midY),                        // center
		geom.NewPoint(box.X2, box.Y2),                    // bottom right
		geom.NewPoint(box.X1, box.Y2),                    // bottom left
		geom.NewPoint(midX, box.Y2),                      // bottom center
		geom.NewPoint(midX, box.Y1+box.Height()/3),       // mid-top center
	)
	return points
}
