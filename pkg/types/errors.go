// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Error kinds surfaced by conversion. Callers match them with errors.Is;
// the wrapped message carries the detail.
var (
	// ErrInvalidDocument marks input that is not a readable PDF, is corrupt,
	// or has a page with degenerate dimensions.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidConfiguration marks out-of-range conversion parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrIOFailure marks an unreadable source or unwritable destination.
	ErrIOFailure = errors.New("i/o failure")
)
