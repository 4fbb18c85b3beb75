package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Stores translate
// driver errors into these; the API layer maps them onto status codes.

var (
	// ErrNotFound covers both "does not exist" and "not owned by the
	// caller" — ownership failures deliberately look identical so the API
	// never leaks whether a foreign id exists.
	ErrNotFound = errors.New("not found")

	// ErrValidation signals missing or malformed input fields.
	ErrValidation = errors.New("invalid data")

	// ErrInsufficientBalance rejects a debit or cashout that would take
	// the balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyGranted reports that a REWARD transaction for the
	// (user, goal, period) key already exists. It never reaches API
	// callers — once a period is paid, hitting it again is the steady state.
	ErrAlreadyGranted = errors.New("reward already granted for period")

	// ErrUnknownMeasureName reports a batch item whose measure name does
	// not resolve to any of the caller's measures.
	ErrUnknownMeasureName = errors.New("measure name does not match any measure")

	// ErrUnsupportedTimeframe rejects period math for timeframes that are
	// declared but not implemented (MONTHLY).
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")
)
