package contracts

import (
	"errors"
	"fmt"
)

// Failure taxonomy surfaced by every mutating operation. Callers classify
// failures with errors.Is; the messages carry the offending detail.
var (
	ErrUnauthorized        = errors.New("caller lacks the required role")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyClaimed      = errors.New("reward already claimed")
	ErrInsufficientBalance = errors.New("insufficient contract balance")
	ErrLimitExceeded       = errors.New("limit exceeded")

	// ErrContractPaused is a pause violation. It wraps ErrInvalidInput so the
	// pause check reads both as its own condition and as an input-class failure.
	ErrContractPaused = fmt.Errorf("%w: contract operations are paused", ErrInvalidInput)
)
