package kernel

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error classes for native invocation and batch orchestration.
var (
	// ErrLibraryLoad indicates no candidate native library could be loaded.
	ErrLibraryLoad = errors.New("upperatm: native library could not be loaded")

	// ErrSymbolResolution indicates the library lacks the expected entry point.
	ErrSymbolResolution = errors.New("upperatm: native entry point not found")

	// ErrBindingNotReady indicates an evaluation on a binding that is not Ready.
	ErrBindingNotReady = errors.New("upperatm: binding not ready")

	// ErrConcurrentCall indicates a second in-flight call on one native handle.
	ErrConcurrentCall = errors.New("upperatm: concurrent call on a non-reentrant native handle")

	// ErrShapeBroadcast indicates input shapes that cannot be broadcast together.
	ErrShapeBroadcast = errors.New("upperatm: shapes are not broadcast-compatible")

	// ErrInvalidParameter indicates a bad vector length, range or option.
	ErrInvalidParameter = errors.New("upperatm: invalid parameter")

	// ErrNativeComputation indicates non-finite values in native outputs.
	ErrNativeComputation = errors.New("upperatm: native computation produced non-finite output")

	// ErrBatchAborted indicates a batch stopped at its first failing point.
	ErrBatchAborted = errors.New("upperatm: batch aborted")

	// ErrTimeout indicates the batch deadline passed before all points finished.
	ErrTimeout = errors.New("upperatm: batch timed out")
)

type LoadAttempt struct {
	Path string
	Err  error
}

type LibraryLoadError struct {
	Variant    string
	Candidates []LoadAttempt
}

func (e *LibraryLoadError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("%s: no candidate library paths for %s", ErrLibraryLoad, e.Variant)
	}
	parts := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		parts[i] = fmt.Sprintf("%s: %v", c.Path, c.Err)
	}
	return fmt.Sprintf("%s: %s (tried %s)", ErrLibraryLoad, e.Variant, strings.Join(parts, "; "))
}

func (e *LibraryLoadError) Unwrap() error { return ErrLibraryLoad }

type SymbolResolutionError struct {
	Library string
	Symbols []string
	Cause   error
}

func (e *SymbolResolutionError) Error() string {
	msg := fmt.Sprintf("%s: none of [%s] in %s", ErrSymbolResolution, strings.Join(e.Symbols, ", "), e.Library)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

func (e *SymbolResolutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrSymbolResolution}
	}
	return []error{ErrSymbolResolution, e.Cause}
}

type BindingNotReadyError struct {
	Model string
	State string
}

func (e *BindingNotReadyError) Error() string {
	return fmt.Sprintf("%s: %s is %s, want ready", ErrBindingNotReady, e.Model, e.State)
}

func (e *BindingNotReadyError) Unwrap() error { return ErrBindingNotReady }

type ShapeBroadcastError struct {
	A      string
	ShapeA []int
	B      string
	ShapeB []int
}

func (e *ShapeBroadcastError) Error() string {
	return fmt.Sprintf("%s: %s %s vs %s %s", ErrShapeBroadcast, e.A, FormatShape(e.ShapeA), e.B, FormatShape(e.ShapeB))
}

func (e *ShapeBroadcastError) Unwrap() error { return ErrShapeBroadcast }

type InvalidParameterError struct {
	Param    string
	Expected string
	Actual   string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("%s: %s: expected %s, got %s", ErrInvalidParameter, e.Param, e.Expected, e.Actual)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

// ArityError reports a fixed-length vector of the wrong length.
func ArityError(param string, expected, actual int) *InvalidParameterError {
	return &InvalidParameterError{
		Param:    param,
		Expected: fmt.Sprintf("length %d", expected),
		Actual:   fmt.Sprintf("length %d", actual),
	}
}

type NativeComputationError struct {
	Model   string
	Outputs Vector
}

func (e *NativeComputationError) Error() string {
	bad := make([]string, 0)
	for i, v := range e.Outputs {
		if !(Vector{v}).IsFinite() {
			bad = append(bad, fmt.Sprintf("out[%d]=%v", i, v))
		}
	}
	return fmt.Sprintf("%s: %s: %s", ErrNativeComputation, e.Model, strings.Join(bad, ", "))
}

func (e *NativeComputationError) Unwrap() error { return ErrNativeComputation }

// BatchAbortedError carries the first failing input index and its values.
type BatchAbortedError struct {
	Index  int
	Names  []string
	Inputs Vector
	Cause  error
}

func (e *BatchAbortedError) Error() string {
	return fmt.Sprintf("%s at index %d (%s): %v", ErrBatchAborted, e.Index, e.describeInputs(), e.Cause)
}

func (e *BatchAbortedError) describeInputs() string {
	parts := make([]string, len(e.Inputs))
	for i, v := range e.Inputs {
		name := fmt.Sprintf("in[%d]", i)
		if i < len(e.Names) {
			name = e.Names[i]
		}
		parts[i] = fmt.Sprintf("%s=%g", name, v)
	}
	return strings.Join(parts, " ")
}

func (e *BatchAbortedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrBatchAborted}
	}
	return []error{ErrBatchAborted, e.Cause}
}

type TimeoutError struct {
	Timeout   time.Duration
	Completed int
	Total     int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %s: %d of %d points completed", ErrTimeout, e.Timeout, e.Completed, e.Total)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

func FormatShape(shape []int) string {
	if len(shape) == 0 {
		return "()"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
