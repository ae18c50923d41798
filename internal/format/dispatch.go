package format

import (
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/poselab/poselab/internal/labels"
)

// Dispatch holds an ordered collection of registered adaptors per object
// kind and selects one for each read or write.
type Dispatch struct {
	adaptors map[ObjectType][]Adaptor
}

// NewDispatch returns an empty registry.
func NewDispatch() *Dispatch {
	return &Dispatch{adaptors: make(map[ObjectType][]Adaptor)}
}

// Register appends an adaptor to the list for its object kind. Probe
// order on read is registration order.
func (d *Dispatch) Register(a Adaptor) {
	d.adaptors[a.Handles()] = append(d.adaptors[a.Handles()], a)
}

// Adaptors returns the registered adaptors for a kind, in probe order.
func (d *Dispatch) Adaptors(kind ObjectType) []Adaptor {
	return d.adaptors[kind]
}

// find returns the registered adaptor with the given name, or nil.
func (d *Dispatch) find(kind ObjectType, name string) Adaptor {
	for _, a := range d.adaptors[kind] {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// Read opens path and probes registered adaptors in order, reading with
// the first whose CanRead succeeds. asFormat narrows the probe to one
// named adaptor; "*" or "" means auto-detect. A nonexistent path fails
// with *MissingFileError, an unclaimed file with *NoMatchingAdaptorError.
func (d *Dispatch) Read(path string, kind ObjectType, asFormat string, opts *ReadOptions) (*labels.Labels, error) {
	if opts == nil {
		opts = &ReadOptions{}
	}
	h, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	if asFormat != "" && asFormat != "*" {
		a := d.find(kind, asFormat)
		if a == nil {
			return nil, &NoMatchingAdaptorError{Path: path, Format: asFormat}
		}
		if !a.DoesRead() {
			return nil, fmt.Errorf("%s: %w", a.Name(), ErrUnsupportedOperation)
		}
		return a.Read(h, opts)
	}

	for _, a := range d.adaptors[kind] {
		if !a.DoesRead() {
			continue
		}
		if !a.CanRead(h) {
			logrus.WithFields(logrus.Fields{"adaptor": a.Name(), "path": path}).
				Debug("probe did not match")
			continue
		}
		logrus.WithFields(logrus.Fields{"adaptor": a.Name(), "path": path}).
			Debug("probe matched")
		return a.Read(h, opts)
	}
	return nil, &NoMatchingAdaptorError{Path: path}
}

// Write serializes lb to path. asFormat picks an adaptor by name; when
// empty the destination extension decides. The destination is guarded by
// a sidecar flock so a labeling session and batch tooling cannot
// interleave writes to the same project file.
func (d *Dispatch) Write(path string, kind ObjectType, lb *labels.Labels, asFormat string, opts *WriteOptions) error {
	if opts == nil {
		opts = &WriteOptions{}
	}
	var target Adaptor
	if asFormat != "" && asFormat != "*" {
		target = d.find(kind, asFormat)
		if target == nil {
			return &NoMatchingAdaptorError{Path: path, Format: asFormat}
		}
		if !target.DoesWrite() {
			return fmt.Errorf("%s: %w", target.Name(), ErrUnsupportedOperation)
		}
	} else {
		for _, a := range d.adaptors[kind] {
			if CanWriteFilename(a, path) {
				target = a
				break
			}
		}
		if target == nil {
			return &NoMatchingAdaptorError{Path: path}
		}
	}

	unlock, err := lockDestination(path, 5*time.Second)
	if err != nil {
		return err
	}
	defer unlock()
	return target.Write(path, lb, opts)
}

// ReadSafely is Read with panics from misbehaving adaptors converted to
// returned errors, for batch tooling that must continue past individual
// failures. A missing file still surfaces as *MissingFileError.
func (d *Dispatch) ReadSafely(path string, kind ObjectType, asFormat string, opts *ReadOptions) (lb *labels.Labels, err error) {
	defer func() {
		if r := recover(); r != nil {
			lb = nil
			err = fmt.Errorf("read %s: %v", path, r)
		}
	}()
	return d.Read(path, kind, asFormat, opts)
}

// WriteSafely is Write with the same panic conversion as ReadSafely.
func (d *Dispatch) WriteSafely(path string, kind ObjectType, lb *labels.Labels, asFormat string, opts *WriteOptions) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write %s: %v", path, r)
		}
	}()
	return d.Write(path, kind, lb, asFormat, opts)
}

// lockDestination acquires the sidecar lock for a write target.
func lockDestination(path string, timeout time.Duration) (func(), error) {
	l := flock.New(path + ".lock")
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire write lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("another writer holds the lock for %s", path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// ── Default registry ─────────────────────────────────────────────────────────

type registration struct {
	adaptor Adaptor
	order   int
}

var defaultRegistry []registration

// RegisterDefault records an adaptor for inclusion in MakeDispatcher's
// registry. Adaptor packages call this from init; order sorts the probe
// sequence by expected likelihood and probe cheapness.
func RegisterDefault(a Adaptor, order int) {
	defaultRegistry = append(defaultRegistry, registration{adaptor: a, order: order})
}

// MakeDispatcher builds the default registry for an object kind.
func MakeDispatcher(kind ObjectType) *Dispatch {
	regs := make([]registration, 0, len(defaultRegistry))
	for _, r := range defaultRegistry {
		if r.adaptor.Handles() == kind {
			regs = append(regs, r)
		}
	}
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].order < regs[j].order })

	d := NewDispatch()
	for _, r := range regs {
		d.Register(r.adaptor)
	}
	return d
}
