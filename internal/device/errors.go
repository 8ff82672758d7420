package device

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks a payload that is not valid JSON of the expected shape.
	ErrMalformed = errors.New("MALFORMED")

	// ErrMissingField marks a well-formed payload without the report object.
	ErrMissingField = errors.New("MISSING_FIELD")

	// ErrMissingCredentials marks a configuration the variant cannot connect with.
	ErrMissingCredentials = errors.New("MISSING_CREDENTIALS")

	// ErrUnsupportedProtocol marks an unknown variant name.
	ErrUnsupportedProtocol = errors.New("UNSUPPORTED_PROTOCOL")
)

// DecodeError keeps the offending payload next to the normalized code.
type DecodeError struct {
	Code     error
	Original error
	Payload  []byte
}

func (e *DecodeError) Error() string {
	if e.Original == nil {
		return e.Code.Error()
	}
	return fmt.Sprintf("%v (cause: %v)", e.Code, e.Original)
}

func (e *DecodeError) Unwrap() error {
	return e.Code
}

func decodeError(code, cause error, payload []byte) error {
	return &DecodeError{Code: code, Original: cause, Payload: payload}
}
