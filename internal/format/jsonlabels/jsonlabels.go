// Package jsonlabels implements the native JSON rendering of a labels
// collection: a flat tree with index-based cross references, convenient
// for diffing and hand inspection.
package jsonlabels

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/poselab/poselab/internal/format"
	"github.com/poselab/poselab/internal/labels"
)

// FormatID tags the document so the probe does not claim foreign JSON.
const FormatID = "poselab.labels"

type document struct {
	Format    string         `json:"format"`
	Version   int            `json:"version"`
	Videos    []videoJSON    `json:"videos"`
	Skeletons []skeletonJSON `json:"skeletons"`
	Tracks    []trackJSON    `json:"tracks"`
	Frames    []frameJSON    `json:"frames"`
}

type videoJSON struct {
	UID       string   `json:"uid"`
	Kind      string   `json:"kind"`
	Filenames []string `json:"filenames"`
}

type skeletonJSON struct {
	Name  string   `json:"name"`
	Nodes []string `json:"nodes"`
	Edges [][2]int `json:"edges"`
}

type trackJSON struct {
	Name      string `json:"name"`
	SpawnedOn int    `json:"spawned_on"`
}

type frameJSON struct {
	Video     int            `json:"video"`
	FrameIdx  int            `json:"frame_idx"`
	Instances []instanceJSON `json:"instances"`
}

// Missing points serialize as null; JSON has no NaN literal.
type instanceJSON struct {
	Skeleton      int           `json:"skeleton"`
	Track         *int          `json:"track,omitempty"`
	Points        []*[2]float64 `json:"points"`
	Predicted     bool          `json:"predicted,omitempty"`
	Score         float64       `json:"score,omitempty"`
	TrackingScore float64       `json:"tracking_score,omitempty"`
	PointScores   []float64     `json:"point_scores,omitempty"`
}

// Adaptor reads and writes the native JSON format.
type Adaptor struct{}

func init() {
	format.RegisterDefault(Adaptor{}, 20)
}

func (Adaptor) Handles() format.ObjectType { return format.LabelsObject }
func (Adaptor) Name() string               { return "json" }
func (Adaptor) DefaultExt() string         { return "json" }
func (Adaptor) AllExts() []string          { return []string{"json"} }
func (Adaptor) DoesRead() bool             { return true }
func (Adaptor) DoesWrite() bool            { return true }

// CanRead accepts JSON documents carrying our format tag.
func (Adaptor) CanRead(h *format.FileHandle) bool {
	if !h.IsJSON() {
		return false
	}
	data, err := h.Bytes()
	if err != nil {
		return false
	}
	var probe struct {
		Format string `json:"format"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.Format == FormatID
}

func (a Adaptor) Read(h *format.FileHandle, opts *format.ReadOptions) (*labels.Labels, error) {
	data, err := h.Bytes()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.Path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.Path, err)
	}
	if doc.Format != FormatID {
		return nil, fmt.Errorf("%s is not a %s document", h.Path, FormatID)
	}

	lb := labels.New()
	for _, v := range doc.Videos {
		video := &labels.Video{Backend: labels.Backend{Kind: labels.BackendKind(v.Kind), Filenames: v.Filenames}}
		if v.Kind == string(labels.BackendMedia) && len(v.Filenames) > 0 {
			video.Backend = labels.Backend{Kind: labels.BackendMedia, Filename: v.Filenames[0]}
		}
		if parsed, err := uuid.Parse(v.UID); err == nil {
			video.ID = parsed
		} else {
			video.ID = uuid.New()
		}
		lb.Videos = append(lb.Videos, video)
	}
	for _, s := range doc.Skeletons {
		edges := make([]labels.Edge, len(s.Edges))
		for i, e := range s.Edges {
			edges[i] = labels.Edge{Src: e[0], Dst: e[1]}
		}
		sk, err := labels.NewSkeleton(s.Name, s.Nodes, edges)
		if err != nil {
			return nil, fmt.Errorf("decode skeleton: %w", err)
		}
		lb.Skeletons = append(lb.Skeletons, sk)
	}
	for _, t := range doc.Tracks {
		lb.Tracks = append(lb.Tracks, labels.NewTrack(t.Name, t.SpawnedOn))
	}
	if opts != nil && opts.HeadersOnly {
		return lb, nil
	}

	for _, f := range doc.Frames {
		if f.Video < 0 || f.Video >= len(lb.Videos) {
			return nil, fmt.Errorf("frame %d references video %d of %d", f.FrameIdx, f.Video, len(lb.Videos))
		}
		lf, err := labels.NewLabeledFrame(lb.Videos[f.Video], f.FrameIdx, nil)
		if err != nil {
			return nil, err
		}
		for _, in := range f.Instances {
			if in.Skeleton < 0 || in.Skeleton >= len(lb.Skeletons) {
				return nil, fmt.Errorf("instance references skeleton %d of %d", in.Skeleton, len(lb.Skeletons))
			}
			inst := &labels.Instance{
				Skeleton:      lb.Skeletons[in.Skeleton],
				Predicted:     in.Predicted,
				Score:         in.Score,
				TrackingScore: in.TrackingScore,
				PointScores:   in.PointScores,
			}
			if in.Track != nil {
				if *in.Track < 0 || *in.Track >= len(lb.Tracks) {
					return nil, fmt.Errorf("instance references track %d of %d", *in.Track, len(lb.Tracks))
				}
				inst.Track = lb.Tracks[*in.Track]
			}
			for _, p := range in.Points {
				if p == nil {
					inst.Points = append(inst.Points, labels.MissingPoint())
				} else {
					inst.Points = append(inst.Points, labels.Point{X: p[0], Y: p[1]})
				}
			}
			lf.Instances = append(lf.Instances, inst)
		}
		lb.Frames = append(lb.Frames, lf)
	}
	return lb, nil
}

func (a Adaptor) Write(path string, lb *labels.Labels, opts *format.WriteOptions) error {
	if err := lb.Validate(); err != nil {
		return &format.InvalidModelError{Reason: err.Error()}
	}

	doc := document{Format: FormatID, Version: 1}
	for _, v := range lb.Videos {
		names := v.Backend.Filenames
		if v.Backend.Kind == labels.BackendMedia {
			names = []string{v.Backend.Filename}
		}
		doc.Videos = append(doc.Videos, videoJSON{UID: v.ID.String(), Kind: string(v.Backend.Kind), Filenames: names})
	}
	for _, s := range lb.Skeletons {
		edges := make([][2]int, len(s.Edges))
		for i, e := range s.Edges {
			edges[i] = [2]int{e.Src, e.Dst}
		}
		doc.Skeletons = append(doc.Skeletons, skeletonJSON{Name: s.Name, Nodes: s.Nodes, Edges: edges})
	}
	for _, t := range lb.Tracks {
		doc.Tracks = append(doc.Tracks, trackJSON{Name: t.Name, SpawnedOn: t.SpawnedOn})
	}

	videoIdx := make(map[*labels.Video]int, len(lb.Videos))
	for i, v := range lb.Videos {
		videoIdx[v] = i
	}
	skeletonIdx := make(map[*labels.Skeleton]int, len(lb.Skeletons))
	for i, s := range lb.Skeletons {
		skeletonIdx[s] = i
	}
	trackIdx := make(map[*labels.Track]int, len(lb.Tracks))
	for i, t := range lb.Tracks {
		trackIdx[t] = i
	}

	for _, lf := range lb.Frames {
		fj := frameJSON{Video: videoIdx[lf.Video], FrameIdx: lf.FrameIdx}
		for _, inst := range lf.Instances {
			ij := instanceJSON{
				Skeleton:      skeletonIdx[inst.Skeleton],
				Predicted:     inst.Predicted,
				Score:         inst.Score,
				TrackingScore: inst.TrackingScore,
				PointScores:   inst.PointScores,
			}
			if inst.Track != nil {
				i := trackIdx[inst.Track]
				ij.Track = &i
			}
			for _, p := range inst.Points {
				if p.IsMissing() {
					ij.Points = append(ij.Points, nil)
				} else {
					ij.Points = append(ij.Points, &[2]float64{p.X, p.Y})
				}
			}
			fj.Instances = append(fj.Instances, ij)
		}
		doc.Frames = append(doc.Frames, fj)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode labels: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
