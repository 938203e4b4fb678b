package shader

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by Variant.Program while compilation is still in flight.
var ErrNotReady = errors.New("shader: variant not ready")

// Compilation stages reported by CompilationError.
const (
	StagePreprocess = "preprocess"
	StageParse      = "parse"
	StageLower      = "lower"
	StageValidate   = "validate"
	StageTranslate  = "translate"
)

// CompilationError reports a variant that failed to generate or compile.
type CompilationError struct {
	Key   VariantKey
	Stage string
	Err   error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("shader: %s failed at %s: %v", e.Key, e.Stage, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}
