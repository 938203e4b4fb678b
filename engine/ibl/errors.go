package ibl

import (
	"errors"
	"fmt"
)

// ErrDepthSource is returned when a depth cubemap is handed to the prefilter.
var ErrDepthSource = errors.New("ibl: depth sources cannot be prefiltered")

// ErrInvalidSource is returned for textures that cannot be read as six faces.
var ErrInvalidSource = errors.New("ibl: source is not a six-layer texture")

// ErrReadbackMalformed marks readback data whose size does not match the subresource.
var ErrReadbackMalformed = errors.New("ibl: malformed readback")

// ResourceError reports a GPU allocation failure. It is fatal to the tick and
// returned to the owner of the pipeline.
type ResourceError struct {
	Node     string
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("ibl: %s failed to allocate %s: %v", e.Node, e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// ReadbackError reports a failed SH readback. The derivation is retried on a later tick.
type ReadbackError struct {
	Source  string
	Face    uint32
	Attempt int
	Err     error
}

func (e *ReadbackError) Error() string {
	return fmt.Sprintf("ibl: readback of %s face %d (attempt %d): %v", e.Source, e.Face, e.Attempt, e.Err)
}

func (e *ReadbackError) Unwrap() error {
	return e.Err
}

// ErrSystemDestroyed is returned by a System after Destroy.
var ErrSystemDestroyed = errors.New("ibl: system destroyed")
