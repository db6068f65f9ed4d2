package vision

import (
	"fmt"
	"math"

	kalman_filter "github.com/LdDl/kalman-filter"

	"github.com/goplai/courtside/pkg/geom"
	"github.com/goplai/courtside/pkg/track"
)

// ObjectDetector is the per-frame detection backend the trackers run
// on. *Detector satisfies it.
type ObjectDetector interface {
	DetectClass(jpeg []byte, classID int) ([]Detection, error)
}

// TrackerConfig holds detection-to-track association parameters.
type TrackerConfig struct {
	// MatchDistance is the maximum center distance (pixels) for a
	// detection to continue an existing track.
	MatchDistance float64

	// MaxMisses is how many consecutive undetected frames a track
	// survives before it is dropped.
	MaxMisses int
}

// DefaultTrackerConfig returns the recommended association parameters.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MatchDistance: 80,
		MaxMisses:     30,
	}
}

// motionTrack is one tracked object with a Kalman-smoothed center.
type motionTrack struct {
	id         int
	kf         *kalman_filter.Kalman2D
	box        geom.Box
	center     geom.Point
	predicted  geom.Point
	confidence float64
	misses     int
}

func newMotionTrack(id int, det Detection) *motionTrack {
	center := det.Box.Center()
	kf := kalman_filter.NewKalman2D(1.0, 1.0, 1.0, 2.0, 0.1, 0.1,
		kalman_filter.WithState2D(center.X, center.Y))
	return &motionTrack{
		id:         id,
		kf:         kf,
		box:        det.Box,
		center:     center,
		predicted:  center,
		confidence: det.Confidence,
	}
}

// predict advances the filter one step without a measurement.
func (t *motionTrack) predict() {
	t.kf.Predict()
	x, y := t.kf.GetState()
	t.predicted = geom.NewPoint(x, y)
}

// update folds a matched detection into the filter and shifts the box
// to the smoothed center.
func (t *motionTrack) update(det Detection) error {
	center := det.Box.Center()
	if err := t.kf.Update(center.X, center.Y); err != nil {
		return fmt.Errorf("update track %d: %w", t.id, err)
	}
	x, y := t.kf.GetState()
	smoothed := geom.NewPoint(x, y)
	shift := smoothed.Sub(center)

	t.box = geom.NewBox(
		det.Box.X1+shift.X, det.Box.Y1+shift.Y,
		det.Box.X2+shift.X, det.Box.Y2+shift.Y)
	t.center = smoothed
	t.confidence = det.Confidence
	t.misses = 0
	return nil
}

// distanceTo scores a detection against the track using the better of
// the current and predicted centers.
func (t *motionTrack) distanceTo(det Detection) float64 {
	center := det.Box.Center()
	return math.Min(center.Distance(t.center), center.Distance(t.predicted))
}

// PlayerMotionTracker assigns stable integer ids to person detections
// across frames. It implements the session player-tracker contract: the
// returned track holds only players seen in the current frame.
type PlayerMotionTracker struct {
	detector ObjectDetector
	classID  int
	config   TrackerConfig
	tracks   []*motionTrack
	nextID   int
}

// NewPlayerMotionTracker tracks detections of the given class.
func NewPlayerMotionTracker(detector ObjectDetector, classID int, config TrackerConfig) *PlayerMotionTracker {
	return &PlayerMotionTracker{
		detector: detector,
		classID:  classID,
		config:   config,
		nextID:   1,
	}
}

// ProcessFrame detects players and returns the frame's track keyed by
// stable id.
func (p *PlayerMotionTracker) ProcessFrame(frame []byte) (track.PlayerTrack, error) {
	detections, err := p.detector.DetectClass(frame, p.classID)
	if err != nil {
		return nil, fmt.Errorf("detect players: %w", err)
	}
	return p.associate(detections)
}

// associate greedily matches detections to tracks by center distance,
// spawns tracks for unmatched detections, and ages out stale tracks.
func (p *PlayerMotionTracker) associate(detections []Detection) (track.PlayerTrack, error) {
	for _, t := range p.tracks {
		t.predict()
	}

	matched := make(map[int]struct{}, len(p.tracks))
	result := make(track.PlayerTrack, len(detections))

	for _, det := range detections {
		var best *motionTrack
		bestDist := p.config.MatchDistance
		for _, t := range p.tracks {
			if _, taken := matched[t.id]; taken {
				continue
			}
			if dist := t.distanceTo(det); dist < bestDist {
				best = t
				bestDist = dist
			}
		}

		if best == nil {
			best = newMotionTrack(p.nextID, det)
			p.nextID++
			p.tracks = append(p.tracks, best)
		} else if err := best.update(det); err != nil {
			return nil, err
		}
		matched[best.id] = struct{}{}

		result[best.id] = track.PlayerObservation{
			ID:         best.id,
			Box:        best.box,
			Center:     best.center,
			Confidence: best.confidence,
		}
	}

	alive := p.tracks[:0]
	for _, t := range p.tracks {
		if _, ok := matched[t.id]; !ok {
			t.misses++
		}
		if t.misses <= p.config.MaxMisses {
			alive = append(alive, t)
		}
	}
	p.tracks = alive

	return result, nil
}

// BallMotionTracker follows the single ball through a Kalman filter and
// reports hoop detections alongside. It implements the session
// ball-tracker contract.
type BallMotionTracker struct {
	detector  ObjectDetector
	ballClass int
	hoopClass int
	config    TrackerConfig
	ball      *motionTrack
}

// NewBallMotionTracker tracks the given ball class; pass NoClass for
// hoopClass when the model has no hoop class.
func NewBallMotionTracker(detector ObjectDetector, ballClass, hoopClass int, config TrackerConfig) *BallMotionTracker {
	return &BallMotionTracker{
		detector:  detector,
		ballClass: ballClass,
		hoopClass: hoopClass,
		config:    config,
	}
}

// ProcessFrame detects the ball and hoops. The ball is nil on frames
// with no confident detection.
func (b *BallMotionTracker) ProcessFrame(frame []byte) (*track.BallObservation, []track.HoopObservation, error) {
	detections, err := b.detector.DetectClass(frame, b.ballClass)
	if err != nil {
		return nil, nil, fmt.Errorf("detect ball: %w", err)
	}

	var hoops []track.HoopObservation
	if b.hoopClass != NoClass {
		hoopDets, err := b.detector.DetectClass(frame, b.hoopClass)
		if err != nil {
			return nil, nil, fmt.Errorf("detect hoops: %w", err)
		}
		for _, det := range hoopDets {
			hoops = append(hoops, track.HoopObservation{Box: det.Box, Center: det.Box.Center()})
		}
	}

	best := bestDetection(detections)
	if best == nil {
		if b.ball != nil {
			b.ball.misses++
			if b.ball.misses > b.config.MaxMisses {
				b.ball = nil
			}
		}
		return nil, hoops, nil
	}

	if b.ball == nil || b.ball.distanceTo(*best) > b.config.MatchDistance {
		b.ball = newMotionTrack(0, *best)
	} else {
		b.ball.predict()
		if err := b.ball.update(*best); err != nil {
			return nil, nil, err
		}
	}

	return &track.BallObservation{Box: b.ball.box, Center: b.ball.center}, hoops, nil
}

// bestDetection returns the highest-confidence detection, or nil.
func bestDetection(detections []Detection) *Detection {
	var best *Detection
	for i := range detections {
		if best == nil || detections[i].Confidence > best.Confidence {
			best = &detections[i]
		}
	}
	return best
}
