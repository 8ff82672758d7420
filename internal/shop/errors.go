package shop

import "errors"

// Sentinel errors carry their API code as the message.
var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("NOT_FOUND")

	// ErrInvalidInput indicates a malformed or out-of-range request body.
	ErrInvalidInput = errors.New("BAD_REQUEST")

	// ErrBanned indicates the client IP is banned from writing.
	ErrBanned = errors.New("BANNED")
)
