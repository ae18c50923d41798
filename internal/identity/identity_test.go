package identity

import (
	"strconv"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/poselab/poselab/internal/labels"
)

func TestMakeClassVectors(t *testing.T) {
	got := MakeClassVectors([]int{0, 2, -1, 1}, 3)
	r, c := got.Dims()
	if r != 4 || c != 3 {
		t.Fatalf("dims = (%d, %d), want (4, 3)", r, c)
	}
	want := []float64{
		1, 0, 0,
		0, 0, 1,
		0, 0, 0,
		0, 1, 0,
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if got.At(i, j) != want[i*c+j] {
				t.Fatalf("vector[%d][%d] = %v, want %v", i, j, got.At(i, j), want[i*c+j])
			}
		}
	}
}

func TestMakeClassMapsSplitsOverlap(t *testing.T) {
	// Two instances overlap on one pixel: 0.8 and 0.2 confidence. Their
	// classes receive the relative contribution, not the raw value.
	a := mat.NewDense(2, 2, []float64{0.8, 0, 0, 0})
	b := mat.NewDense(2, 2, []float64{0.2, 0, 0, 0.6})
	maps := MakeClassMaps([]*mat.Dense{a, b}, []int{0, 1}, 2, 0.1)

	if len(maps) != 2 {
		t.Fatalf("maps = %d, want 2", len(maps))
	}
	if got := maps[0].At(0, 0); got != 0.8 {
		t.Fatalf("class 0 at overlap = %v, want 0.8", got)
	}
	if got := maps[1].At(0, 0); got != 0.2 {
		t.Fatalf("class 1 at overlap = %v, want 0.2", got)
	}
	// Sole coverage normalizes to 1.
	if got := maps[1].At(1, 1); got != 1 {
		t.Fatalf("class 1 sole pixel = %v, want 1", got)
	}
	if got := maps[0].At(1, 1); got != 0 {
		t.Fatalf("class 0 sole pixel = %v, want 0", got)
	}
}

func TestMakeClassMapsThreshold(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{0.05})
	maps := MakeClassMaps([]*mat.Dense{a}, []int{0}, 1, 0.1)
	if got := maps[0].At(0, 0); got != 0 {
		t.Fatalf("sub-threshold value leaked: %v", got)
	}
}

func TestMakeClassMapsIgnoresUnclassed(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{0.9})
	maps := MakeClassMaps([]*mat.Dense{a}, []int{-1}, 2, 0.1)
	if maps[0].At(0, 0) != 0 || maps[1].At(0, 0) != 0 {
		t.Fatal("untracked instance must not contribute to any class")
	}
}

func TestTrackInds(t *testing.T) {
	sk, err := labels.NewSkeleton("", []string{"a"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	lb := labels.New()
	lb.Skeletons = append(lb.Skeletons, sk)
	video := labels.NewMediaVideo("v.mp4")
	lb.Videos = append(lb.Videos, video)
	t0 := labels.NewTrack("t0", 0)
	t1 := labels.NewTrack("t1", 0)
	lb.Tracks = append(lb.Tracks, t0, t1)

	mk := func(tr *labels.Track) *labels.Instance {
		inst, err := labels.NewInstance(sk, []labels.Point{{X: 1, Y: 1}})
		if err != nil {
			t.Fatal(err)
		}
		inst.Track = tr
		return inst
	}
	lf, err := labels.NewLabeledFrame(video, 0, []*labels.Instance{mk(t1), mk(nil), mk(t0)})
	if err != nil {
		t.Fatal(err)
	}
	lb.Append(lf)

	got := TrackInds(lb, lf)
	if len(got) != 3 || got[0] != 1 || got[1] != -1 || got[2] != 0 {
		t.Fatalf("track inds = %v, want [1 -1 0]", got)
	}
}

func TestMapConcurrentPreservesOrder(t *testing.T) {
	in := make([]int, 200)
	for i := range in {
		in[i] = i
	}
	got := MapConcurrent(in, func(v int) string { return strconv.Itoa(v * 2) })
	if len(got) != len(in) {
		t.Fatalf("len = %d, want %d", len(got), len(in))
	}
	for i, s := range got {
		if s != strconv.Itoa(i*2) {
			t.Fatalf("out[%d] = %q", i, s)
		}
	}
}
