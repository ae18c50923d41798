package nix

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/poselab/poselab/internal/format"
	"github.com/poselab/poselab/internal/labels"
)

func trackedLabels(t *testing.T) *labels.Labels {
	t.Helper()
	sk, err := labels.NewSkeleton("fly", []string{"head", "thorax", "abdomen"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	lb := labels.New()
	lb.Skeletons = append(lb.Skeletons, sk)
	video := labels.NewMediaVideo("fly.mp4")
	lb.Videos = append(lb.Videos, video)
	track := labels.NewTrack("fly-0", 0)
	lb.Tracks = append(lb.Tracks, track)

	for frame := 0; frame < 2; frame++ {
		pts := make([]labels.Point, 3)
		for n := range pts {
			pts[n] = labels.Point{X: float64(frame*10 + n), Y: float64(frame*10 + n + 100)}
		}
		inst, err := labels.NewPredictedInstance(sk, pts, 0.5+float64(frame)*0.25)
		if err != nil {
			t.Fatal(err)
		}
		inst.Track = track
		lf, err := labels.NewLabeledFrame(video, frame, []*labels.Instance{inst})
		if err != nil {
			t.Fatal(err)
		}
		lb.Append(lf)
	}
	return lb
}

func TestWriteProducesTrackingBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.nix")
	lb := trackedLabels(t)
	if err := (Adaptor{}).Write(path, lb, nil); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc Document
	if err := bson.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}

	if doc.Format != FormatID || doc.Metadata.Format != FormatID || doc.Metadata.Writer != Writer {
		t.Fatalf("metadata = %+v", doc.Metadata)
	}
	if len(doc.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(doc.Blocks))
	}
	b := doc.Blocks[0]
	if b.Type != BlockType || b.Video != "fly.mp4" {
		t.Fatalf("block = %+v", b)
	}

	arrays := map[string]DataArray{}
	for _, da := range b.DataArrays {
		arrays[da.Name] = da
	}

	pos := arrays["position"]
	if pos.Type != TypePosition {
		t.Fatalf("position type = %q", pos.Type)
	}
	if len(pos.Shape) != 3 || pos.Shape[0] != 2 || pos.Shape[1] != 3 || pos.Shape[2] != 2 {
		t.Fatalf("position shape = %v, want [2 3 2]", pos.Shape)
	}
	if len(pos.Doubles) != 2*3*2 {
		t.Fatalf("position payload = %d values", len(pos.Doubles))
	}
	// Second instance, node 1: x = 11, y = 111.
	if pos.Doubles[6+2] != 11 || pos.Doubles[6+3] != 111 {
		t.Fatalf("position payload = %v", pos.Doubles)
	}

	if got := arrays["frame"].Ints; len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("frame array = %v", got)
	}
	if got := arrays["track"].Ints; len(got) != 2 || got[0] != 0 || got[1] != 0 {
		t.Fatalf("track array = %v", got)
	}
	if got := arrays["score"].Doubles; len(got) != 2 || got[0] != 0.5 || got[1] != 0.75 {
		t.Fatalf("score array = %v", got)
	}
	if got := arrays["node_names"].Strings; len(got) != 3 || got[1] != "thorax" {
		t.Fatalf("node names = %v", got)
	}
	if got := arrays["track_names"].Strings; len(got) != 1 || got[0] != "fly-0" {
		t.Fatalf("track names = %v", got)
	}
}

func TestWriteNeedsTargetWithSeveralVideos(t *testing.T) {
	lb := trackedLabels(t)
	lb.Videos = append(lb.Videos, labels.NewMediaVideo("other.mp4"))

	path := filepath.Join(t.TempDir(), "out.nix")
	err := (Adaptor{}).Write(path, lb, nil)
	var invalid *format.InvalidModelError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidModelError", err)
	}

	// Naming the target resolves it.
	if err := (Adaptor{}).Write(path, lb, &format.WriteOptions{Video: lb.Videos[0]}); err != nil {
		t.Fatal(err)
	}
}

func TestWriteRejectsForeignTarget(t *testing.T) {
	lb := trackedLabels(t)
	stranger := labels.NewMediaVideo("stranger.mp4")
	err := (Adaptor{}).Write(filepath.Join(t.TempDir(), "out.nix"), lb, &format.WriteOptions{Video: stranger})
	var invalid *format.InvalidModelError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidModelError", err)
	}
}

func TestReadIsUnsupported(t *testing.T) {
	if (Adaptor{}).DoesRead() {
		t.Fatal("nix must be export-only")
	}
	if _, err := (Adaptor{}).Read(nil, nil); !errors.Is(err, format.ErrUnsupportedOperation) {
		t.Fatalf("err = %v", err)
	}
}
