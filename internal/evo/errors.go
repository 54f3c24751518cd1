package evo

import "errors"

var (
	// ErrInvalidConfiguration is returned by NewEvolver when the run parameters or the
	// catalogue cannot describe a valid search.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrDegenerateSelection is returned when every individual scores zero and the
	// selector is configured to fail instead of falling back to uniform draws.
	ErrDegenerateSelection = errors.New("degenerate selection: total fitness is zero")
)
