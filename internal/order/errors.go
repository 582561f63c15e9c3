package order

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOrderNumber  = errors.New("order number is empty")
	ErrOrderNotFound     = errors.New("order not found")
	ErrMalformedResponse = errors.New("malformed lookup response")
)

// LookupError is a technical lookup failure: transport error or unexpected status.
type LookupError struct {
	Status int
	Err    error
}

func (e *LookupError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("order lookup failed: %s", e.Err)
	}
	return fmt.Sprintf("order lookup failed with status %d: %s", e.Status, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
