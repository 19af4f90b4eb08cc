package health

import "errors"

var (
	// ErrCheckTimeout indicates a check did not finish before the deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrNoCheckers indicates an Aggregator with nothing registered.
	ErrNoCheckers = errors.New("health: no checkers registered")
)
