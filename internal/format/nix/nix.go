// Package nix exports tracking results into a generic scientific
// container: a BSON file with a top-level metadata section and blocks of
// typed data arrays. Export-only; analysis tools on the other end never
// write labels back.
package nix

import (
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/poselab/poselab/internal/format"
	"github.com/poselab/poselab/internal/labels"
)

// FormatID is the tag recorded in the container's metadata section.
const FormatID = "nix.tracking"

// Writer identity recorded alongside the format tag.
const Writer = "poselab"

// BlockType marks a block of tracking results for one video.
const BlockType = "nix.tracking_results"

// Data array role types.
const (
	TypePosition = "nix.tracking.instance_position"
	TypeFrameIdx = "nix.tracking.instance_frameidx"
	TypeTrack    = "nix.tracking.instance_track"
	TypeScore    = "nix.tracking.instance_score"
	TypeNodes    = "nix.tracking.node_names"
	TypeTracks   = "nix.tracking.track_names"
)

// Document is the written container layout. Exported so tests and
// downstream tooling can decode what the adaptor produced.
type Document struct {
	Format   string  `bson:"format"`
	Writer   string  `bson:"writer"`
	Metadata Section `bson:"metadata"`
	Blocks   []Block `bson:"blocks"`
}

// Section is the top-level metadata section.
type Section struct {
	Format string `bson:"format"`
	Writer string `bson:"writer"`
}

// Block holds one video's data arrays.
type Block struct {
	Type       string      `bson:"type"`
	Video      string      `bson:"video"`
	DataArrays []DataArray `bson:"data_arrays"`
}

// DataArray is one typed n-dimensional array; Doubles/Ints/Strings hold
// the flattened row-major payload depending on role.
type DataArray struct {
	Name    string    `bson:"name"`
	Type    string    `bson:"type"`
	Shape   []int     `bson:"shape"`
	Doubles []float64 `bson:"doubles,omitempty"`
	Ints    []int     `bson:"ints,omitempty"`
	Strings []string  `bson:"strings,omitempty"`
}

// Adaptor writes the .nix tracking export.
type Adaptor struct{}

func init() {
	format.RegisterDefault(Adaptor{}, 60)
}

func (Adaptor) Handles() format.ObjectType { return format.LabelsObject }
func (Adaptor) Name() string               { return "nix" }
func (Adaptor) DefaultExt() string         { return "nix" }
func (Adaptor) AllExts() []string          { return []string{"nix"} }
func (Adaptor) DoesRead() bool             { return false }
func (Adaptor) DoesWrite() bool            { return true }

func (Adaptor) CanRead(h *format.FileHandle) bool { return false }

// Read is not supported: the export is one-way.
func (Adaptor) Read(h *format.FileHandle, opts *format.ReadOptions) (*labels.Labels, error) {
	return nil, fmt.Errorf("nix: %w", format.ErrUnsupportedOperation)
}

// Write exports the target video's instances. The target comes from
// opts.Video; with exactly one video in the model it is inferred, with
// several it is required.
func (a Adaptor) Write(path string, lb *labels.Labels, opts *format.WriteOptions) error {
	if opts == nil {
		opts = &format.WriteOptions{}
	}
	video := opts.Video
	if video == nil {
		if len(lb.Videos) != 1 {
			return &format.InvalidModelError{
				Reason: fmt.Sprintf("model has %d videos; an explicit target video is required", len(lb.Videos)),
			}
		}
		video = lb.Videos[0]
	} else if lb.VideoIndex(video) < 0 {
		return &format.InvalidModelError{Reason: "target video is not part of the model"}
	}

	skeleton := lb.Skeleton()
	if skeleton == nil {
		return &format.InvalidModelError{Reason: "model has no skeleton"}
	}
	nNodes := len(skeleton.Nodes)

	var (
		positions []float64 // (n, nodes, 2) row-major
		frames    []int
		tracks    []int
		scores    []float64
		count     int
	)
	for _, lf := range lb.Frames {
		if lf.Video != video {
			continue
		}
		for _, inst := range lf.Instances {
			for n := 0; n < nNodes; n++ {
				p := labels.MissingPoint()
				if n < len(inst.Points) {
					p = inst.Points[n]
				}
				positions = append(positions, p.X, p.Y)
			}
			frames = append(frames, lf.FrameIdx)
			tracks = append(tracks, lb.TrackIndex(inst.Track))
			scores = append(scores, inst.Score)
			count++
		}
	}

	trackNames := make([]string, len(lb.Tracks))
	for i, t := range lb.Tracks {
		trackNames[i] = t.Name
	}

	doc := Document{
		Format:   FormatID,
		Writer:   Writer,
		Metadata: Section{Format: FormatID, Writer: Writer},
		Blocks: []Block{{
			Type:  BlockType,
			Video: video.Backend.Source(),
			DataArrays: []DataArray{
				{Name: "position", Type: TypePosition, Shape: []int{count, nNodes, 2}, Doubles: positions},
				{Name: "frame", Type: TypeFrameIdx, Shape: []int{count}, Ints: frames},
				{Name: "track", Type: TypeTrack, Shape: []int{count}, Ints: tracks},
				{Name: "score", Type: TypeScore, Shape: []int{count}, Doubles: scores},
				{Name: "node_names", Type: TypeNodes, Shape: []int{nNodes}, Strings: skeleton.Nodes},
				{Name: "track_names", Type: TypeTracks, Shape: []int{len(trackNames)}, Strings: trackNames},
			},
		}},
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
