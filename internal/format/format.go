package format

import (
	"fmt"

	"github.com/poselab/poselab/internal/labels"
)

// objectTypeByName maps the caller-facing object kind names to registry
// keys.
var objectTypeByName = map[string]ObjectType{
	"labels": LabelsObject,
}

func objectType(forObject string) (ObjectType, error) {
	kind, ok := objectTypeByName[forObject]
	if !ok {
		return 0, fmt.Errorf("unknown object kind %q", forObject)
	}
	return kind, nil
}

// Read reads path into the canonical model using the default registry
// for forObject. asFormat names one adaptor, or "*"/"" for auto-detect.
func Read(path, forObject, asFormat string, opts *ReadOptions) (*labels.Labels, error) {
	kind, err := objectType(forObject)
	if err != nil {
		return nil, err
	}
	return MakeDispatcher(kind).Read(path, kind, asFormat, opts)
}

// Write serializes lb to path using the default registry for forObject.
func Write(path, forObject string, lb *labels.Labels, asFormat string, opts *WriteOptions) error {
	kind, err := objectType(forObject)
	if err != nil {
		return err
	}
	return MakeDispatcher(kind).Write(path, kind, lb, asFormat, opts)
}

// ReadSafely is Read with adaptor panics converted to returned errors.
func ReadSafely(path, forObject, asFormat string, opts *ReadOptions) (*labels.Labels, error) {
	kind, err := objectType(forObject)
	if err != nil {
		return nil, err
	}
	return MakeDispatcher(kind).ReadSafely(path, kind, asFormat, opts)
}

// WriteSafely is Write with adaptor panics converted to returned errors.
func WriteSafely(path, forObject string, lb *labels.Labels, asFormat string, opts *WriteOptions) error {
	kind, err := objectType(forObject)
	if err != nil {
		return err
	}
	return MakeDispatcher(kind).WriteSafely(path, kind, lb, asFormat, opts)
}
