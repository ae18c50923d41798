package plp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poselab/poselab/internal/format"
	"github.com/poselab/poselab/internal/labels"
)

func fixtureLabels(t *testing.T) *labels.Labels {
	t.Helper()
	sk, err := labels.NewSkeleton("fly", []string{"head", "thorax", "abdomen"},
		[]labels.Edge{{Src: 0, Dst: 1}, {Src: 1, Dst: 2}})
	if err != nil {
		t.Fatal(err)
	}
	video := labels.NewMediaVideo("data/session.mp4")
	track := labels.NewTrack("fly-1", 0)

	lb := labels.New()
	user, err := labels.NewInstance(sk, []labels.Point{{X: 1, Y: 2}, {X: 3, Y: 4}, labels.MissingPoint()})
	if err != nil {
		t.Fatal(err)
	}
	user.Track = track
	lf0, _ := labels.NewLabeledFrame(video, 0, []*labels.Instance{user})
	lb.Append(lf0)

	pred, err := labels.NewPredictedInstance(sk, []labels.Point{{X: 5, Y: 6}, labels.MissingPoint(), {X: 7, Y: 8}}, 0.93)
	if err != nil {
		t.Fatal(err)
	}
	pred.Track = track
	pred.TrackingScore = 0.81
	pred.PointScores = []float64{0.9, 0.1, 0.8}
	lf1, _ := labels.NewLabeledFrame(video, 1, []*labels.Instance{pred})
	lb.Append(lf1)

	return lb
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.plp")
	lb := fixtureLabels(t)

	if err := (Adaptor{}).Write(path, lb, nil); err != nil {
		t.Fatal(err)
	}

	h, err := format.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if !(Adaptor{}).CanRead(h) {
		t.Fatal("adaptor must claim its own output")
	}
	got, err := Adaptor{}.Read(h, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(got.Frames) != len(lb.Frames) {
		t.Fatalf("frames: got %d want %d", len(got.Frames), len(lb.Frames))
	}
	if len(got.Tracks) != 1 || got.Tracks[0].Name != "fly-1" {
		t.Fatalf("tracks not preserved: %+v", got.Tracks)
	}
	sk := got.Skeleton()
	if sk == nil || len(sk.Nodes) != 3 || len(sk.Edges) != 2 {
		t.Fatalf("skeleton not preserved: %+v", sk)
	}
	if got.Videos[0].ID != lb.Videos[0].ID {
		t.Fatal("video identity not preserved")
	}

	pred := got.Frames[1].Instances[0]
	if !pred.Predicted || pred.Score != 0.93 {
		t.Fatalf("prediction fields lost: %+v", pred)
	}
	if pred.TrackingScore != 0.81 {
		t.Fatalf("tracking score lost: %v", pred.TrackingScore)
	}
	if len(pred.PointScores) != 3 || pred.PointScores[2] != 0.8 {
		t.Fatalf("point scores lost: %v", pred.PointScores)
	}
	if !pred.Points[1].IsMissing() {
		t.Fatal("missing point sentinel lost")
	}
	if pred.Points[0] != (labels.Point{X: 5, Y: 6}) {
		t.Fatalf("coordinates changed: %+v", pred.Points[0])
	}
	if pred.Track != got.Tracks[0] {
		t.Fatal("instance track reference not resolved to the parent collection")
	}

	user := got.Frames[0].Instances[0]
	if user.Predicted {
		t.Fatal("user instance became predicted")
	}
	if user.Skeleton != sk {
		t.Fatal("instance skeleton reference not shared")
	}
}

func TestReadHeadersSkipsFrameData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.plp")
	if err := (Adaptor{}).Write(path, fixtureLabels(t), nil); err != nil {
		t.Fatal(err)
	}

	h, err := format.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	got, err := ReadHeaders(h)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Videos) != 1 || got.Skeleton() == nil || len(got.Tracks) != 1 {
		t.Fatalf("headers incomplete: %d videos, %d tracks", len(got.Videos), len(got.Tracks))
	}
	if len(got.Frames) != 0 {
		t.Fatalf("header read materialized %d frames", len(got.Frames))
	}
}

func TestLargeProjectRoundTrip(t *testing.T) {
	sk, err := labels.NewSkeleton("", []string{"a", "b"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	video := labels.NewMediaVideo("long.mp4")
	track := labels.NewTrack("animal", 0)

	lb := labels.New()
	for i := 0; i < 1100; i++ {
		inst, err := labels.NewPredictedInstance(sk, []labels.Point{{X: float64(i), Y: 0}, {X: 0, Y: float64(i)}}, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		inst.Track = track
		lf, err := labels.NewLabeledFrame(video, i, []*labels.Instance{inst})
		if err != nil {
			t.Fatal(err)
		}
		lb.Append(lf)
	}

	path := filepath.Join(t.TempDir(), "long.plp")
	if err := (Adaptor{}).Write(path, lb, nil); err != nil {
		t.Fatal(err)
	}

	h, err := format.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	got, err := Adaptor{}.Read(h, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Frames) != 1100 {
		t.Fatalf("frames: got %d want 1100", len(got.Frames))
	}
}

func TestCanReadRejectsForeignFiles(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "labels.json")
	if err := os.WriteFile(jsonPath, []byte(`{"format": "poselab.labels"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	h, err := format.Open(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if (Adaptor{}).CanRead(h) {
		t.Fatal("JSON file claimed by the SQLite container adaptor")
	}
}
