package labels

import (
	"fmt"
	"math"
)

// Point is one 2D node coordinate. A missing point is (NaN, NaN).
type Point struct {
	X float64
	Y float64
}

// MissingPoint returns the not-a-number sentinel used for unset nodes.
func MissingPoint() Point {
	return Point{X: math.NaN(), Y: math.NaN()}
}

// IsMissing reports whether the point is the NaN sentinel.
func (p Point) IsMissing() bool {
	return math.IsNaN(p.X) && math.IsNaN(p.Y)
}

// Instance is an ordered sequence of points, one per skeleton node, with
// a non-owning skeleton reference and an optional track reference.
//
// A predicted instance is the same record with Predicted set; it
// additionally carries a detection Score, an instance-level
// TrackingScore, and optional per-point scores.
type Instance struct {
	Skeleton *Skeleton
	Track    *Track
	Points   []Point

	Predicted     bool
	Score         float64
	TrackingScore float64
	PointScores   []float64
}

// NewInstance returns a user-labeled instance. Points must be one per
// skeleton node.
func NewInstance(sk *Skeleton, points []Point) (*Instance, error) {
	if len(points) != len(sk.Nodes) {
		return nil, fmt.Errorf("instance has %d points for %d skeleton nodes", len(points), len(sk.Nodes))
	}
	return &Instance{Skeleton: sk, Points: points}, nil
}

// NewPredictedInstance returns a predicted instance with a detection
// confidence score.
func NewPredictedInstance(sk *Skeleton, points []Point, score float64) (*Instance, error) {
	inst, err := NewInstance(sk, points)
	if err != nil {
		return nil, err
	}
	inst.Predicted = true
	inst.Score = score
	return inst, nil
}

// IsEmpty reports whether every point is missing.
func (in *Instance) IsEmpty() bool {
	for _, p := range in.Points {
		if !p.IsMissing() {
			return false
		}
	}
	return true
}

// LabeledFrame pairs a video and a frame index with the instances labeled
// on that frame. FrameIdx is non-negative; (Video, FrameIdx) pairs are
// unique within a Labels collection.
type LabeledFrame struct {
	Video     *Video
	FrameIdx  int
	Instances []*Instance
}

// NewLabeledFrame builds a frame, rejecting negative indices.
func NewLabeledFrame(v *Video, frameIdx int, instances []*Instance) (*LabeledFrame, error) {
	if frameIdx < 0 {
		return nil, fmt.Errorf("negative frame index %d", frameIdx)
	}
	return &LabeledFrame{Video: v, FrameIdx: frameIdx, Instances: instances}, nil
}
