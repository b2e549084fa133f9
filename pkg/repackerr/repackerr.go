// Package repackerr defines the error kinds shared by more than one stage
// of the repackaging pipeline. Errors specific to a single package (for
// example a malformed packaging rule) are defined alongside that package
// instead.
package repackerr

import "fmt"

// IoError wraps a filesystem operation failure with the path it happened
// to, so the annotated chain survives up to the top-level error message.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

func (e *IoError) RepackError() {}

// NewIoError wraps err as an IoError, or returns nil if err is nil.
func NewIoError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IoError{Op: op, Path: path, Err: err}
}

// SubprocessError reports a child process that failed to start or exited
// with a non-zero status: pip, the distribution's interpreter, or the
// native compiler driver.
type SubprocessError struct {
	Command []string
	Err     error
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("subprocess %v failed: %v", e.Command, e.Err)
}

func (e *SubprocessError) Unwrap() error { return e.Err }

func (e *SubprocessError) RepackError() {}

// RepackError is the base marker interface implemented by every typed
// error in this repository, so callers can errors.As against it to
// distinguish pipeline failures from unrelated Go stdlib errors.
type RepackError interface {
	error
	RepackError()
}
