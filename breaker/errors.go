package breaker

import "errors"

var (
	// ErrInvalidConfig is returned when breaker thresholds are unusable.
	ErrInvalidConfig = errors.New("invalid breaker config")
)
