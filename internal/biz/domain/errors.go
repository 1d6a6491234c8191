package domain

import "errors"

// Error taxonomy shared by every layer. Callers wrap these with fmt.Errorf("%w: ...")
// and the API boundary maps them to status codes with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrUpstream     = errors.New("upstream failure")
)
