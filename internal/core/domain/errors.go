package domain

import "errors"

var (
	// ErrFetch marks network, HTTP or RPC failures of an external source.
	ErrFetch = errors.New("fetch failed")

	// ErrDecode marks malformed responses and unsupported scripts.
	ErrDecode = errors.New("decode failed")

	// ErrPersistence marks store read or write failures.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound is returned by stores when a keyed record doesn't exist.
	ErrNotFound = errors.New("not found")
)

// ClassifyFailure maps an error to the failure type stored with a failed block.
func ClassifyFailure(err error) FailureType {
	switch {
	case err == nil:
		return FailureTypeUnknown
	case errors.Is(err, ErrPersistence):
		return FailureTypeDatabase
	case errors.Is(err, ErrDecode):
		return FailureTypeParsing
	case errors.Is(err, ErrFetch):
		return FailureTypeRPC
	default:
		return FailureTypeUnknown
	}
}
