package utils

import (
	"fmt"
	"path/filepath"
	"runtime"
)

type ErrorKind uint8

const (
	InvalidFileName ErrorKind = iota
	InvalidSize
	InvalidCell
	NegativeJacobian
	InvalidFace
	UnsupportedExternalFormat
	UnknownRegion
	NotConverged
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidFileName:
		return "InvalidFileName"
	case InvalidSize:
		return "InvalidSize"
	case InvalidCell:
		return "InvalidCell"
	case NegativeJacobian:
		return "NegativeJacobian"
	case InvalidFace:
		return "InvalidFace"
	case UnsupportedExternalFormat:
		return "UnsupportedExternalFormat"
	case UnknownRegion:
		return "UnknownRegion"
	case NotConverged:
		return "NotConverged"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error is a fatal condition carrying the source location that raised it.
// None of these are recovered locally, they travel up to the command layer.
type Error struct {
	Kind ErrorKind
	Msg  string
	File string
	Line int
}

// Sentinels for errors.Is
var (
	ErrInvalidFileName           = &Error{Kind: InvalidFileName}
	ErrInvalidSize               = &Error{Kind: InvalidSize}
	ErrInvalidCell               = &Error{Kind: InvalidCell}
	ErrNegativeJacobian          = &Error{Kind: NegativeJacobian}
	ErrInvalidFace               = &Error{Kind: InvalidFace}
	ErrUnsupportedExternalFormat = &Error{Kind: UnsupportedExternalFormat}
	ErrUnknownRegion             = &Error{Kind: UnknownRegion}
	ErrNotConverged              = &Error{Kind: NotConverged}
)

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s (%s:%d)", e.Kind, e.Msg, e.File, e.Line)
}

// Is matches any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, msg string) *Error {
	e := &Error{Kind: kind, Msg: msg}
	// skip newError and the public constructor
	if _, file, line, ok := runtime.Caller(2); ok {
		e.File, e.Line = filepath.Base(file), line
	}
	return e
}

func InvalidFileNameError(filename string, cause error) error {
	if cause != nil {
		return newError(InvalidFileName, fmt.Sprintf("error opening file %s: %v", filename, cause))
	}
	return newError(InvalidFileName, fmt.Sprintf("error opening file %s", filename))
}

func InvalidSizeError(expected, got int) error {
	return newError(InvalidSize, fmt.Sprintf("expected size %d, got size %d", expected, got))
}

func InvalidCellError(cellID, cellType, order int) error {
	return newError(InvalidCell, fmt.Sprintf("cell %d has invalid type (%d) or order (%d)",
		cellID, cellType, order))
}

func NegativeJacobianError(cellID int, jac float64) error {
	return newError(NegativeJacobian, fmt.Sprintf("non-positive jacobian %g at cell %d", jac, cellID))
}

func InvalidFaceError(shape string, face int) error {
	return newError(InvalidFace, fmt.Sprintf("invalid face index %d for %s", face, shape))
}

func UnsupportedExternalFormatError(format string, id, elemType int) error {
	return newError(UnsupportedExternalFormat,
		fmt.Sprintf("unsupported %s cell type %d (element %d)", format, elemType, id))
}

func UnknownRegionError(name string) error {
	return newError(UnknownRegion, fmt.Sprintf("no region named %q", name))
}

func NotConvergedError(iterations int, residual float64) error {
	return newError(NotConverged, fmt.Sprintf("no convergence after %d iterations, residual %g",
		iterations, residual))
}
