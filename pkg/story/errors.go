package story

import "errors"

// Error kinds surfaced by the engine. Callers match them with errors.Is; the
// concrete error usually wraps one of these with more detail.
var (
	ErrValidation        = errors.New("validation error")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrGeneration        = errors.New("generation error")
	ErrIllegalChoice     = errors.New("illegal choice")
	ErrGameOver          = errors.New("game is over")
	ErrSessionBusy       = errors.New("session is busy")
)
