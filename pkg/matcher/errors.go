package matcher

import "errors"

var (
	// ErrConstructionFailed means a keyword set could not be compiled. Only
	// resource limits cause it; any byte string is a valid keyword.
	ErrConstructionFailed = errors.New("keyword automaton construction failed")

	// ErrAllocationFailed means the scan buffer could not grow to the
	// requested size.
	ErrAllocationFailed = errors.New("scan buffer allocation failed")

	// ErrOutOfRange means a scan length falls outside the buffer's active
	// region.
	ErrOutOfRange = errors.New("scan length out of range")
)
