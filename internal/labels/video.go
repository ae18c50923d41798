package labels

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BackendKind distinguishes the physical media behind a Video.
type BackendKind string

const (
	// BackendMedia is a single media file (e.g. an mp4).
	BackendMedia BackendKind = "media"
	// BackendImages is an ordered image sequence.
	BackendImages BackendKind = "images"
)

// Backend is the lazily-opened media reference behind a Video. Only the
// identity (kind + filenames) is stored; the file itself is touched on
// first Open.
type Backend struct {
	Kind      BackendKind
	Filename  string   // media file, when Kind == BackendMedia
	Filenames []string // image sequence, when Kind == BackendImages
}

// Source returns the path that identifies the backend: the media file, or
// the first image of a sequence.
func (b Backend) Source() string {
	if b.Kind == BackendImages && len(b.Filenames) > 0 {
		return b.Filenames[0]
	}
	return b.Filename
}

// Video references one media source that labeled frames point at. ID is
// stable across serialization round-trips; the backend is resolved lazily.
type Video struct {
	ID      uuid.UUID
	Backend Backend

	opened bool
}

// NewMediaVideo returns a Video backed by a single media file.
func NewMediaVideo(filename string) *Video {
	return &Video{
		ID:      uuid.New(),
		Backend: Backend{Kind: BackendMedia, Filename: filename},
	}
}

// NewImageVideo returns a Video backed by an ordered image sequence.
func NewImageVideo(filenames []string) *Video {
	return &Video{
		ID:      uuid.New(),
		Backend: Backend{Kind: BackendImages, Filenames: filenames},
	}
}

// Open resolves the backend on first use. It only verifies the source is
// reachable; decoding is a collaborator's job.
func (v *Video) Open() error {
	if v.opened {
		return nil
	}
	src := v.Backend.Source()
	if src == "" {
		return fmt.Errorf("video %s has no backend source", v.ID)
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("cannot open video source %s: %w", src, err)
	}
	v.opened = true
	return nil
}

// SameSource reports whether two videos alias the same physical media.
// Used by merge-on-read to collapse duplicate Video entries.
func (v *Video) SameSource(other *Video) bool {
	if v.Backend.Kind != other.Backend.Kind {
		return false
	}
	return filepath.Clean(v.Backend.Source()) == filepath.Clean(other.Backend.Source())
}
