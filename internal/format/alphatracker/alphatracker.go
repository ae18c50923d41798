// Package alphatracker imports AlphaTracker dataset JSON files: an array
// of per-image entries whose annotation list interleaves bounding boxes
// with the points belonging to them. Import-only.
package alphatracker

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/poselab/poselab/internal/format"
	"github.com/poselab/poselab/internal/labels"
)

type annotation struct {
	Class string  `json:"class"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
}

type entry struct {
	Filename    string       `json:"filename"`
	Class       string       `json:"class"`
	Annotations []annotation `json:"annotations"`
}

// Adaptor imports AlphaTracker JSON datasets.
type Adaptor struct{}

func init() {
	format.RegisterDefault(Adaptor{}, 30)
}

func (Adaptor) Handles() format.ObjectType { return format.LabelsObject }
func (Adaptor) Name() string               { return "alphatracker" }
func (Adaptor) DefaultExt() string         { return "json" }
func (Adaptor) AllExts() []string          { return []string{"json"} }
func (Adaptor) DoesRead() bool             { return true }
func (Adaptor) DoesWrite() bool            { return false }

// CanRead matches JSON arrays of image entries with annotation lists.
func (Adaptor) CanRead(h *format.FileHandle) bool {
	if !h.IsJSON() {
		return false
	}
	data, err := h.Bytes()
	if err != nil {
		return false
	}
	var entries []entry
	if json.Unmarshal(data, &entries) != nil || len(entries) == 0 {
		return false
	}
	return entries[0].Filename != "" && entries[0].Annotations != nil
}

func (a Adaptor) Read(h *format.FileHandle, opts *format.ReadOptions) (*labels.Labels, error) {
	data, err := h.Bytes()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.Path, err)
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.Path, err)
	}

	// Instances are delimited by box annotations; the widest instance
	// sets the node count. Node names are stringified indices, exactly
	// as the source format displays them.
	type rawInstance struct{ points []labels.Point }
	perFrame := make([][]rawInstance, len(entries))
	maxNodes := 0
	filenames := make([]string, len(entries))
	for i, e := range entries {
		filenames[i] = e.Filename
		var instances []rawInstance
		for _, ann := range e.Annotations {
			switch ann.Class {
			case "point":
				if len(instances) == 0 {
					instances = append(instances, rawInstance{})
				}
				last := &instances[len(instances)-1]
				last.points = append(last.points, labels.Point{X: ann.X, Y: ann.Y})
				if len(last.points) > maxNodes {
					maxNodes = len(last.points)
				}
			default:
				// A box record opens the next instance.
				instances = append(instances, rawInstance{})
			}
		}
		perFrame[i] = instances
	}
	if maxNodes == 0 {
		return nil, fmt.Errorf("%s contains no point annotations", h.Path)
	}

	nodes := make([]string, maxNodes)
	for i := range nodes {
		nodes[i] = strconv.Itoa(i + 1)
	}
	skeleton, err := labels.NewSkeleton("", nodes, nil)
	if err != nil {
		return nil, err
	}

	lb := labels.New()
	lb.Skeletons = append(lb.Skeletons, skeleton)
	video := labels.NewImageVideo(filenames)
	lb.Videos = append(lb.Videos, video)

	for frameIdx, instances := range perFrame {
		lf, err := labels.NewLabeledFrame(video, frameIdx, nil)
		if err != nil {
			return nil, err
		}
		for _, raw := range instances {
			points := make([]labels.Point, maxNodes)
			for i := range points {
				if i < len(raw.points) {
					points[i] = raw.points[i]
				} else {
					points[i] = labels.MissingPoint()
				}
			}
			inst, err := labels.NewInstance(skeleton, points)
			if err != nil {
				return nil, err
			}
			lf.Instances = append(lf.Instances, inst)
		}
		lb.Frames = append(lb.Frames, lf)
	}
	return lb, nil
}

// Write is not supported: AlphaTracker is an import-only source.
func (Adaptor) Write(path string, lb *labels.Labels, opts *format.WriteOptions) error {
	return fmt.Errorf("alphatracker: %w", format.ErrUnsupportedOperation)
}
