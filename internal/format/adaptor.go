// Package format is the multi-format dataset I/O layer: a registry of
// per-format adaptors that read and write pose label files into and out
// of the canonical labels model.
package format

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poselab/poselab/internal/labels"
)

// ObjectType selects which canonical object kind an adaptor produces or
// consumes. Only labels exist today; the registry is keyed by kind so
// more can be added.
type ObjectType int

const (
	// LabelsObject is the Labels aggregate.
	LabelsObject ObjectType = iota
)

// ReadOptions tune a read without changing its format.
type ReadOptions struct {
	// HeadersOnly asks for the metadata fast path: videos, skeletons and
	// tracks without frame data. Adaptors without a fast path ignore it.
	HeadersOnly bool
	// Video supplies the external video reference required by formats
	// that do not serialize one.
	Video *labels.Video
}

// WriteOptions tune a write.
type WriteOptions struct {
	// Video selects the target video for formats that serialize exactly
	// one. Required when the model holds several videos.
	Video *labels.Video
}

// Adaptor is one format-specific read/write strategy. CanRead must be a
// cheap probe that leaves the handle usable by the next adaptor in the
// registry.
type Adaptor interface {
	Handles() ObjectType
	Name() string
	DefaultExt() string
	AllExts() []string
	DoesRead() bool
	DoesWrite() bool
	CanRead(h *FileHandle) bool
	Read(h *FileHandle, opts *ReadOptions) (*labels.Labels, error)
	Write(path string, lb *labels.Labels, opts *WriteOptions) error
}

// CanWriteFilename reports extension-based write eligibility, independent
// of content. Extensions match as filename suffixes so multi-segment
// entries like "plp.db" work.
func CanWriteFilename(a Adaptor, path string) bool {
	if !a.DoesWrite() {
		return false
	}
	base := strings.ToLower(filepath.Base(path))
	for _, e := range a.AllExts() {
		if strings.HasSuffix(base, "."+e) {
			return true
		}
	}
	return false
}

// ExtOptions builds the file-dialog filter string for an adaptor, shaped
// "<display name> (<ext1> <ext2> ...)".
func ExtOptions(a Adaptor) string {
	return fmt.Sprintf("%s (%s)", a.Name(), strings.Join(a.AllExts(), " "))
}
