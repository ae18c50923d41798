package labels

import (
	"math"
	"testing"
)

func testSkeleton(t *testing.T) *Skeleton {
	t.Helper()
	sk, err := NewSkeleton("animal", []string{"head", "thorax", "tail"}, []Edge{{0, 1}, {1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	return sk
}

func TestAppendMergesDuplicateFrames(t *testing.T) {
	lb := New()
	sk := testSkeleton(t)
	video := NewMediaVideo("session.mp4")

	inst1, err := NewInstance(sk, []Point{{1, 2}, {3, 4}, {5, 6}})
	if err != nil {
		t.Fatal(err)
	}
	inst2, err := NewInstance(sk, []Point{{7, 8}, MissingPoint(), {9, 10}})
	if err != nil {
		t.Fatal(err)
	}

	lf1, _ := NewLabeledFrame(video, 5, []*Instance{inst1})
	lf2, _ := NewLabeledFrame(video, 5, []*Instance{inst2})
	lb.Append(lf1)
	lb.Append(lf2)

	if len(lb.Frames) != 1 {
		t.Fatalf("expected merged frame, got %d frames", len(lb.Frames))
	}
	if got := len(lb.Frames[0].Instances); got != 2 {
		t.Fatalf("expected 2 instances after merge, got %d", got)
	}
	if len(lb.Skeletons) != 1 || len(lb.Videos) != 1 {
		t.Fatalf("parents not deduplicated: %d skeletons, %d videos", len(lb.Skeletons), len(lb.Videos))
	}
}

func TestAddVideoCollapsesAliases(t *testing.T) {
	lb := New()
	a := NewMediaVideo("data/session.mp4")
	b := NewMediaVideo("data/session.mp4")

	first := lb.AddVideo(a)
	second := lb.AddVideo(b)
	if first != second {
		t.Fatal("same-source videos were not collapsed")
	}
	if len(lb.Videos) != 1 {
		t.Fatalf("expected 1 video, got %d", len(lb.Videos))
	}
}

func TestTrackIdentityIsByPointer(t *testing.T) {
	lb := New()
	t1 := NewTrack("mouse", 0)
	t2 := NewTrack("mouse", 0)
	lb.AddTrack(t1)
	lb.AddTrack(t2)
	if len(lb.Tracks) != 2 {
		t.Fatalf("tracks with equal names must still be distinct, got %d", len(lb.Tracks))
	}
	lb.AddTrack(t1)
	if len(lb.Tracks) != 2 {
		t.Fatalf("re-adding the same track must be a no-op, got %d", len(lb.Tracks))
	}
}

func TestFindUsesIndexAndSurvivesAppend(t *testing.T) {
	lb := New()
	sk := testSkeleton(t)
	video := NewMediaVideo("a.mp4")
	for i := 0; i < 10; i++ {
		inst, _ := NewInstance(sk, []Point{{float64(i), 0}, MissingPoint(), MissingPoint()})
		lf, _ := NewLabeledFrame(video, i, []*Instance{inst})
		lb.Append(lf)
	}
	if lf := lb.Find(video, 7); lf == nil || lf.FrameIdx != 7 {
		t.Fatal("lookup after build failed")
	}

	// Appending after the index was built must keep lookups fresh.
	inst, _ := NewInstance(sk, []Point{{1, 1}, MissingPoint(), MissingPoint()})
	lf, _ := NewLabeledFrame(video, 42, []*Instance{inst})
	lb.Append(lf)
	if got := lb.Find(video, 42); got == nil {
		t.Fatal("lookup after append failed")
	}

	lb.RemoveFrame(lf)
	if got := lb.Find(video, 42); got != nil {
		t.Fatal("lookup after removal should miss")
	}
}

func TestValidateCatchesDanglingReferences(t *testing.T) {
	sk := testSkeleton(t)
	video := NewMediaVideo("a.mp4")
	inst, _ := NewInstance(sk, []Point{{1, 2}, {3, 4}, {5, 6}})

	lb := New()
	lb.Videos = []*Video{video}
	lb.Frames = []*LabeledFrame{{Video: video, FrameIdx: 0, Instances: []*Instance{inst}}}
	// Skeleton deliberately not registered.
	if err := lb.Validate(); err == nil {
		t.Fatal("expected error for unregistered skeleton")
	}

	lb.Skeletons = []*Skeleton{sk}
	if err := lb.Validate(); err != nil {
		t.Fatalf("valid model rejected: %v", err)
	}

	inst.Track = NewTrack("stray", 0)
	if err := lb.Validate(); err == nil {
		t.Fatal("expected error for unregistered track")
	}
}

func TestSkeletonConstruction(t *testing.T) {
	if _, err := NewSkeleton("", []string{"a", "a"}, nil); err == nil {
		t.Fatal("duplicate node names must be rejected")
	}
	if _, err := NewSkeleton("", []string{"a", "b"}, []Edge{{0, 2}}); err == nil {
		t.Fatal("out-of-range edge must be rejected")
	}
}

func TestMissingPointSentinel(t *testing.T) {
	p := MissingPoint()
	if !math.IsNaN(p.X) || !math.IsNaN(p.Y) {
		t.Fatal("sentinel must be NaN")
	}
	if !p.IsMissing() {
		t.Fatal("sentinel must report missing")
	}
	if (Point{X: 1, Y: math.NaN()}).IsMissing() {
		t.Fatal("half-set point is not the sentinel")
	}
}
