package edf2cfs

import (
	"errors"
	"fmt"

	"github.com/amiyapatanaik/edf2cfs/internal/cfs"
)

// Sentinel errors for failures that carry no parameters.
var (
	// ErrAlreadyConverted reports an existing output with overwrite
	// disabled; the job does no work.
	ErrAlreadyConverted = errors.New("output already converted")

	// ErrIntegrityFailure reports a failure computing the payload
	// digest.
	ErrIntegrityFailure = errors.New("integrity digest failed")
)

// OpenError reports a failure opening or parsing an EDF file.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open EDF %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// LabelNotFoundError reports a requested channel label absent from the
// EDF signal list.
type LabelNotFoundError struct {
	Role Role
}

func (e *LabelNotFoundError) Error() string {
	return fmt.Sprintf("%s label not found", e.Role)
}

// UnsupportedUnitError reports a physical dimension outside the
// accepted voltage units.
type UnsupportedUnitError struct {
	Role Role
	Unit string
}

func (e *UnsupportedUnitError) Error() string {
	return fmt.Sprintf("%s: unsupported unit %q (must be nV, uV, mV or V)", e.Role, e.Unit)
}

// RateMismatchError reports C3 and C4 disagreeing on the nominal
// integer sample rate.
type RateMismatchError struct {
	C3Rate int
	C4Rate int
}

func (e *RateMismatchError) Error() string {
	return fmt.Sprintf("C3 and C4 sampling rates must be equal: %d vs %d Hz", e.C3Rate, e.C4Rate)
}

// ReadError reports a failed sample extraction mid-stream.
type ReadError struct {
	Role Role
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s samples: %v", e.Role, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a destination that cannot be opened or written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ReportCode maps a job error to its stable report code for aggregate
// diagnostics. A nil error maps to "ok".
func ReportCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyConverted):
		return "already-converted"
	case errors.Is(err, ErrIntegrityFailure):
		return "integrity-failure"
	case errors.Is(err, cfs.ErrBufferTooSmall):
		return "buffer-too-small"
	case errors.Is(err, cfs.ErrOutOfMemory):
		return "out-of-memory"
	case errors.Is(err, cfs.ErrEpochOverflow):
		return "epoch-overflow"
	}

	var (
		openErr  *OpenError
		labelErr *LabelNotFoundError
		unitErr  *UnsupportedUnitError
		rateErr  *RateMismatchError
		readErr  *ReadError
		writeErr *WriteError
	)
	switch {
	case errors.As(err, &openErr):
		return "edf-open-failure"
	case errors.As(err, &labelErr):
		return "label-not-found"
	case errors.As(err, &unitErr):
		return "unsupported-unit"
	case errors.As(err, &rateErr):
		return "channel-rate-mismatch"
	case errors.As(err, &readErr):
		return "read-failure"
	case errors.As(err, &writeErr):
		return "write-failure"
	}
	return "internal"
}
