package usecase

import "errors"

var (
	// ErrInsufficientHistory marks a cycle skipped because the trailing
	// window is too short for the deepest feature lag. It is a
	// precondition failure, not an operational error.
	ErrInsufficientHistory = errors.New("usecase: insufficient trailing history")
)
