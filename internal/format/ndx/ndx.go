// Package ndx reads and writes the pose-exchange container used by
// neurophysiology pipelines: a BSON document with file-level metadata and
// one pose-estimation group per video. Writes are append-safe: re-writing
// identical content leaves the file unchanged.
package ndx

import (
	"fmt"
	"os"
	"reflect"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/poselab/poselab/internal/format"
	"github.com/poselab/poselab/internal/labels"
)

// FormatID tags the container's top-level metadata.
const FormatID = "ndx.pose"

// Writer is the identity recorded in written files.
const Writer = "poselab"

type document struct {
	Format    string         `bson:"format"`
	Writer    string         `bson:"writer"`
	Skeletons []skeletonBSON `bson:"skeletons"`
	Tracks    []trackBSON    `bson:"tracks"`
	Groups    []groupBSON    `bson:"groups"`
}

type skeletonBSON struct {
	Name  string   `bson:"name"`
	Nodes []string `bson:"nodes"`
	Edges [][2]int `bson:"edges"`
}

type trackBSON struct {
	Name      string `bson:"name"`
	SpawnedOn int    `bson:"spawned_on"`
}

type videoBSON struct {
	UID       string   `bson:"uid"`
	Kind      string   `bson:"kind"`
	Filenames []string `bson:"filenames"`
}

type groupBSON struct {
	Video     videoBSON      `bson:"video"`
	Instances []instanceBSON `bson:"instances"`
}

type instanceBSON struct {
	FrameIdx      int          `bson:"frame_idx"`
	Skeleton      int          `bson:"skeleton"`
	Track         int          `bson:"track"` // -1 when untracked
	Points        [][2]float64 `bson:"points"`
	Predicted     bool         `bson:"predicted"`
	Score         float64      `bson:"score"`
	TrackingScore float64      `bson:"tracking_score"`
	PointScores   []float64    `bson:"point_scores,omitempty"`
}

// Adaptor reads and writes the .nwb pose container.
type Adaptor struct{}

func init() {
	format.RegisterDefault(Adaptor{}, 50)
}

func (Adaptor) Handles() format.ObjectType { return format.LabelsObject }
func (Adaptor) Name() string               { return "ndx" }
func (Adaptor) DefaultExt() string         { return "nwb" }
func (Adaptor) AllExts() []string          { return []string{"nwb"} }
func (Adaptor) DoesRead() bool             { return true }
func (Adaptor) DoesWrite() bool            { return true }

// CanRead matches containers declaring our format id.
func (Adaptor) CanRead(h *format.FileHandle) bool {
	return !h.IsSQLite() && !h.IsJSON() && h.FormatID() == FormatID
}

func (a Adaptor) Read(h *format.FileHandle, opts *format.ReadOptions) (*labels.Labels, error) {
	data, err := h.Bytes()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.Path, err)
	}
	var doc document
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.Path, err)
	}
	if doc.Format != FormatID {
		return nil, fmt.Errorf("%s is not a %s container", h.Path, FormatID)
	}

	lb := labels.New()
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
		for _, g := range doc.Groups {
			lb.Videos = append(lb.Videos, decodeVideo(g.Video))
		}
		return lb, nil
	}

	for _, g := range doc.Groups {
		video := decodeVideo(g.Video)
		lb.Videos = append(lb.Videos, video)
		for _, in := range g.Instances {
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
			if in.Track >= 0 {
				if in.Track >= len(lb.Tracks) {
					return nil, fmt.Errorf("instance references track %d of %d", in.Track, len(lb.Tracks))
				}
				inst.Track = lb.Tracks[in.Track]
			}
			for _, p := range in.Points {
				inst.Points = append(inst.Points, labels.Point{X: p[0], Y: p[1]})
			}
			lf, err := labels.NewLabeledFrame(video, in.FrameIdx, []*labels.Instance{inst})
			if err != nil {
				return nil, err
			}
			lb.Append(lf)
		}
	}
	return lb, nil
}

// Write serializes lb, appending into an existing container without
// duplicating groups whose content is unchanged. A model without a
// single instance is rejected before anything is written.
func (a Adaptor) Write(path string, lb *labels.Labels, opts *format.WriteOptions) error {
	if len(lb.Instances()) == 0 {
		return &format.InvalidModelError{Reason: "ndx container requires at least one instance"}
	}
	if err := lb.Validate(); err != nil {
		return &format.InvalidModelError{Reason: err.Error()}
	}

	doc := encode(lb)

	if existing, err := readExisting(path); err == nil {
		doc.Groups = mergeGroups(existing.Groups, doc.Groups)
	}

	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode container: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readExisting(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Format != FormatID {
		return nil, fmt.Errorf("existing file is not a %s container", FormatID)
	}
	return &doc, nil
}

// mergeGroups folds incoming groups into existing ones. Groups match by
// video identity, then filename, and as a last resort by the previous
// index position — a documented tolerance for the nondeterministic group
// ordering some producers exhibit, not a guaranteed contract.
func mergeGroups(existing, incoming []groupBSON) []groupBSON {
	out := existing
	for idx, g := range incoming {
		pos := matchGroup(out, g, idx)
		if pos < 0 {
			out = append(out, g)
			continue
		}
		if !reflect.DeepEqual(out[pos], g) {
			out[pos] = g
		}
	}
	return out
}

func matchGroup(groups []groupBSON, g groupBSON, idx int) int {
	for i, have := range groups {
		if have.Video.UID == g.Video.UID {
			return i
		}
	}
	for i, have := range groups {
		if len(have.Video.Filenames) > 0 && len(g.Video.Filenames) > 0 &&
			have.Video.Filenames[0] == g.Video.Filenames[0] {
			return i
		}
	}
	if idx > 0 && idx-1 < len(groups) {
		logrus.WithField("group", idx).Warn("ndx: no identity match for video group, falling back to previous index")
		return idx - 1
	}
	return -1
}

func encode(lb *labels.Labels) *document {
	doc := &document{Format: FormatID, Writer: Writer}
	for _, s := range lb.Skeletons {
		edges := make([][2]int, len(s.Edges))
		for i, e := range s.Edges {
			edges[i] = [2]int{e.Src, e.Dst}
		}
		doc.Skeletons = append(doc.Skeletons, skeletonBSON{Name: s.Name, Nodes: s.Nodes, Edges: edges})
	}
	for _, t := range lb.Tracks {
		doc.Tracks = append(doc.Tracks, trackBSON{Name: t.Name, SpawnedOn: t.SpawnedOn})
	}

	skeletonIdx := make(map[*labels.Skeleton]int, len(lb.Skeletons))
	for i, s := range lb.Skeletons {
		skeletonIdx[s] = i
	}
	trackIdx := make(map[*labels.Track]int, len(lb.Tracks))
	for i, t := range lb.Tracks {
		trackIdx[t] = i
	}

	for _, v := range lb.Videos {
		g := groupBSON{Video: encodeVideo(v)}
		for _, lf := range lb.Frames {
			if lf.Video != v {
				continue
			}
			for _, inst := range lf.Instances {
				in := instanceBSON{
					FrameIdx:      lf.FrameIdx,
					Skeleton:      skeletonIdx[inst.Skeleton],
					Track:         -1,
					Predicted:     inst.Predicted,
					Score:         inst.Score,
					TrackingScore: inst.TrackingScore,
					PointScores:   inst.PointScores,
				}
				if inst.Track != nil {
					in.Track = trackIdx[inst.Track]
				}
				for _, p := range inst.Points {
					in.Points = append(in.Points, [2]float64{p.X, p.Y})
				}
				g.Instances = append(g.Instances, in)
			}
		}
		doc.Groups = append(doc.Groups, g)
	}
	return doc
}

func encodeVideo(v *labels.Video) videoBSON {
	names := v.Backend.Filenames
	if v.Backend.Kind == labels.BackendMedia {
		names = []string{v.Backend.Filename}
	}
	return videoBSON{UID: v.ID.String(), Kind: string(v.Backend.Kind), Filenames: names}
}

func decodeVideo(v videoBSON) *labels.Video {
	video := &labels.Video{Backend: labels.Backend{Kind: labels.BackendKind(v.Kind), Filenames: v.Filenames}}
	if v.Kind == string(labels.BackendMedia) && len(v.Filenames) > 0 {
		video.Backend = labels.Backend{Kind: labels.BackendMedia, Filename: v.Filenames[0]}
	}
	if parsed, err := uuid.Parse(v.UID); err == nil {
		video.ID = parsed
	} else {
		video.ID = uuid.New()
	}
	return video
}
