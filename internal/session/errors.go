package session

import "errors"

var (
	// ErrOrderUnavailable is the only resolution failure shown to the user. The real cause
	// is logged.
	ErrOrderUnavailable = errors.New("order is unavailable")
	ErrUnexpectedInput  = errors.New("input is not expected in the current state")
	ErrNothingPending   = errors.New("no uploads are waiting for confirmation")
)
