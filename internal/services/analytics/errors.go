package analytics

import "errors"

// Sentinel errors for detector input problems.
var (
	// ErrInvalidInput flags an empty or malformed candle series.
	ErrInvalidInput = errors.New("invalid candle series")
	// ErrInsufficientData flags a series too short for the requested analysis.
	// Callers treat it as a no-detection result rather than a failure.
	ErrInsufficientData = errors.New("insufficient candle data")
)
