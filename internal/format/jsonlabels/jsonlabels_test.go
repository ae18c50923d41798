package jsonlabels

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poselab/poselab/internal/format"
	"github.com/poselab/poselab/internal/labels"
)

func fixtureLabels(t *testing.T) *labels.Labels {
	t.Helper()
	sk, err := labels.NewSkeleton("mouse", []string{"nose", "tail"}, []labels.Edge{{Src: 0, Dst: 1}})
	if err != nil {
		t.Fatal(err)
	}
	video := labels.NewImageVideo([]string{"img000.png", "img001.png"})
	track := labels.NewTrack("m1", 0)

	lb := labels.New()
	inst, err := labels.NewInstance(sk, []labels.Point{{X: 10, Y: 20}, labels.MissingPoint()})
	if err != nil {
		t.Fatal(err)
	}
	inst.Track = track
	lf, _ := labels.NewLabeledFrame(video, 0, []*labels.Instance{inst})
	lb.Append(lf)
	return lb
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
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
	if len(got.Frames) != 1 || len(got.Tracks) != 1 {
		t.Fatalf("round trip changed shape: %d frames, %d tracks", len(got.Frames), len(got.Tracks))
	}
	inst := got.Frames[0].Instances[0]
	if inst.Points[0] != (labels.Point{X: 10, Y: 20}) {
		t.Fatalf("coordinates changed: %+v", inst.Points[0])
	}
	// NaN has no JSON literal; the null encoding must restore the sentinel.
	if !inst.Points[1].IsMissing() {
		t.Fatal("missing point sentinel lost")
	}
	if inst.Track != got.Tracks[0] {
		t.Fatal("track reference not resolved")
	}
	if got.Videos[0].Backend.Kind != labels.BackendImages || len(got.Videos[0].Backend.Filenames) != 2 {
		t.Fatalf("video backend changed: %+v", got.Videos[0].Backend)
	}
}

func TestHeadersOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	if err := (Adaptor{}).Write(path, fixtureLabels(t), nil); err != nil {
		t.Fatal(err)
	}
	h, err := format.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	got, err := Adaptor{}.Read(h, &format.ReadOptions{HeadersOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Frames) != 0 || len(got.Tracks) != 1 || got.Skeleton() == nil {
		t.Fatalf("headers-only read wrong: %d frames, %d tracks", len(got.Frames), len(got.Tracks))
	}
}

func TestCanReadRejectsForeignJSON(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"plain.json": `{"foo": 1}`,
		"text.json":  `some text in a .json file`,
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		h, err := format.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		if (Adaptor{}).CanRead(h) {
			t.Fatalf("%s wrongly claimed", name)
		}
		h.Close()
	}
}
