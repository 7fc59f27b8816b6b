package bookings

import "errors"

var (
	// ErrValidation covers malformed input; nothing is persisted.
	ErrValidation = errors.New("invalid booking request")

	// ErrQuoteExpired is returned when the referenced quote is missing or past
	// its expiry. Not retryable, the client has to re-quote.
	ErrQuoteExpired = errors.New("quote expired")

	// ErrInvalidTransition means the trigger does not match the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrTerminalState means the booking already reached a terminal state and
	// must not be mutated again.
	ErrTerminalState = errors.New("booking is in terminal state")

	// ErrPaymentRefMismatch means a payment event referenced a payment that
	// was not issued for this booking.
	ErrPaymentRefMismatch = errors.New("payment reference mismatch")
)
