package oracle

import "errors"

var (
	// ErrOrderingViolation means matches were handed over out of (date, seq) order.
	// Ratings computed from such a stream would be silently wrong so the run aborts.
	ErrOrderingViolation = errors.New("matches not in chronological order")

	// ErrMalformedMatch marks a single unusable record (missing goals, no date...)
	ErrMalformedMatch = errors.New("malformed match")

	// ErrDuplicateMatch means the same match id appeared twice in one run
	ErrDuplicateMatch = errors.New("duplicate match id")

	ErrInvalidProbabilities = errors.New("invalid outcome probabilities")
	ErrInvalidOdds          = errors.New("invalid decimal odds")
	ErrInvalidConfig        = errors.New("invalid configuration")
)
