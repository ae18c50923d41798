package format

import (
	"errors"
	"fmt"
)

// ErrUnsupportedOperation is returned when Read is called on a write-only
// adaptor or Write on a read-only one.
var ErrUnsupportedOperation = errors.New("operation not supported by this adaptor")

// MissingFileError reports a path that does not exist at read time. It is
// never downgraded: ReadSafely surfaces it like the strict path does.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// NoMatchingAdaptorError reports that no registered adaptor claimed the
// file, or that an explicitly named format is unknown.
type NoMatchingAdaptorError struct {
	Path   string
	Format string // explicit format name, or "" for auto-detect
}

func (e *NoMatchingAdaptorError) Error() string {
	if e.Format != "" && e.Format != "*" {
		return fmt.Sprintf("no adaptor named %q for %s", e.Format, e.Path)
	}
	return fmt.Sprintf("no adaptor matched %s", e.Path)
}

// InvalidModelError reports a model that is structurally invalid for the
// target format, detected before any partial write.
type InvalidModelError struct {
	Reason string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("invalid model for format: %s", e.Reason)
}
