// Package labels holds the canonical in-memory pose label model: the
// graph of videos, skeletons, tracks, labeled frames and instances that
// every file-format adaptor reads into and writes from.
package labels

import (
	"fmt"

	"github.com/google/uuid"
)

type frameKey struct {
	video    uuid.UUID
	frameIdx int
}

// Labels is the root aggregate. It owns the videos, skeletons, tracks and
// labeled frames; instances inside frames reference skeletons and tracks
// by identity only.
type Labels struct {
	Videos    []*Video
	Skeletons []*Skeleton
	Tracks    []*Track
	Frames    []*LabeledFrame

	// Lazy (video, frameIdx) lookup index, dropped on mutation.
	frameIndex map[frameKey]*LabeledFrame
}

// New returns an empty Labels collection.
func New() *Labels {
	return &Labels{}
}

// Skeleton returns the primary (first) skeleton, or nil.
func (l *Labels) Skeleton() *Skeleton {
	if len(l.Skeletons) == 0 {
		return nil
	}
	return l.Skeletons[0]
}

// AddVideo appends a video, collapsing aliases of the same physical
// source onto the existing entry. Returns the canonical entry.
func (l *Labels) AddVideo(v *Video) *Video {
	for _, have := range l.Videos {
		if have == v || have.SameSource(v) {
			return have
		}
	}
	l.Videos = append(l.Videos, v)
	return v
}

// AddSkeleton appends a skeleton, deduplicating structurally identical
// ones. Returns the canonical entry.
func (l *Labels) AddSkeleton(s *Skeleton) *Skeleton {
	for _, have := range l.Skeletons {
		if have == s || have.Matches(s) {
			return have
		}
	}
	l.Skeletons = append(l.Skeletons, s)
	return s
}

// AddTrack appends a track if not already present. Track identity is by
// pointer, never by name.
func (l *Labels) AddTrack(t *Track) {
	for _, have := range l.Tracks {
		if have == t {
			return
		}
	}
	l.Tracks = append(l.Tracks, t)
}

// Append adds a labeled frame. A frame for an already-present
// (video, frameIdx) pair merges its instances into the existing frame
// instead of creating a duplicate. The frame's video, skeletons and
// tracks are pulled into the parent collections.
func (l *Labels) Append(lf *LabeledFrame) {
	lf.Video = l.AddVideo(lf.Video)
	for _, inst := range lf.Instances {
		if inst.Skeleton != nil {
			inst.Skeleton = l.AddSkeleton(inst.Skeleton)
		}
		if inst.Track != nil {
			l.AddTrack(inst.Track)
		}
	}

	if have := l.Find(lf.Video, lf.FrameIdx); have != nil {
		have.Instances = append(have.Instances, lf.Instances...)
		return
	}
	l.Frames = append(l.Frames, lf)
	if l.frameIndex != nil {
		l.frameIndex[frameKey{lf.Video.ID, lf.FrameIdx}] = lf
	}
}

// Find returns the frame for (video, frameIdx), or nil. The lookup index
// is built on first use.
func (l *Labels) Find(v *Video, frameIdx int) *LabeledFrame {
	if l.frameIndex == nil {
		l.frameIndex = make(map[frameKey]*LabeledFrame, len(l.Frames))
		for _, lf := range l.Frames {
			l.frameIndex[frameKey{lf.Video.ID, lf.FrameIdx}] = lf
		}
	}
	return l.frameIndex[frameKey{v.ID, frameIdx}]
}

// RemoveFrame drops a frame from the aggregate and invalidates the index.
func (l *Labels) RemoveFrame(lf *LabeledFrame) {
	for i, have := range l.Frames {
		if have == lf {
			l.Frames = append(l.Frames[:i], l.Frames[i+1:]...)
			l.frameIndex = nil
			return
		}
	}
}

// Instances yields every instance across all frames in frame order.
func (l *Labels) Instances() []*Instance {
	var out []*Instance
	for _, lf := range l.Frames {
		out = append(out, lf.Instances...)
	}
	return out
}

// TrackIndex returns the position of t in Tracks, or -1.
func (l *Labels) TrackIndex(t *Track) int {
	for i, have := range l.Tracks {
		if have == t {
			return i
		}
	}
	return -1
}

// VideoIndex returns the position of v in Videos, or -1.
func (l *Labels) VideoIndex(v *Video) int {
	for i, have := range l.Videos {
		if have == v {
			return i
		}
	}
	return -1
}

// Validate checks referential integrity: every frame's video and every
// instance's skeleton and track must appear in the parent collections,
// and (video, frameIdx) pairs must be unique.
func (l *Labels) Validate() error {
	videos := make(map[*Video]bool, len(l.Videos))
	for _, v := range l.Videos {
		videos[v] = true
	}
	skeletons := make(map[*Skeleton]bool, len(l.Skeletons))
	for _, s := range l.Skeletons {
		skeletons[s] = true
	}
	tracks := make(map[*Track]bool, len(l.Tracks))
	for _, t := range l.Tracks {
		tracks[t] = true
	}

	seen := make(map[frameKey]bool, len(l.Frames))
	for _, lf := range l.Frames {
		if !videos[lf.Video] {
			return fmt.Errorf("frame %d references a video not in the collection", lf.FrameIdx)
		}
		if lf.FrameIdx < 0 {
			return fmt.Errorf("negative frame index %d", lf.FrameIdx)
		}
		k := frameKey{lf.Video.ID, lf.FrameIdx}
		if seen[k] {
			return fmt.Errorf("duplicate labeled frame (video %s, frame %d)", lf.Video.ID, lf.FrameIdx)
		}
		seen[k] = true
		for _, inst := range lf.Instances {
			if inst.Skeleton == nil || !skeletons[inst.Skeleton] {
				return fmt.Errorf("instance on frame %d references an unknown skeleton", lf.FrameIdx)
			}
			if inst.Track != nil && !tracks[inst.Track] {
				return fmt.Errorf("instance on frame %d references an unknown track", lf.FrameIdx)
			}
		}
	}
	return nil
}
