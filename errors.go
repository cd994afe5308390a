package pe

import "github.com/pkg/errors"

// Fatal: the image cannot be described at all.
var (
	ErrMalformedHeader = errors.New("malformed PE header")
	ErrMalformedImage  = errors.New("malformed PE image")
)

var (
	ErrInvalidPESize = errors.WithMessage(ErrMalformedHeader, "not a PE file, smaller than tiny PE")
	ErrFileTooLarge  = errors.New("file exceeds the configured maximum size")
)

// Non-fatal: a single optional structure is damaged or missing.
var (
	ErrOutOfBounds     = errors.New("reading data outside boundary")
	ErrUnresolvableRva = errors.New("RVA is not contained in any section")
	ErrDirectoryFault  = errors.New("damaged data directory")
)

// IsFatal reports whether err prevents any feature from being computed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMalformedHeader) ||
		errors.Is(err, ErrMalformedImage) ||
		errors.Is(err, ErrFileTooLarge)
}
