package store

import "errors"

var (
	// ErrWrongType is returned when a command finds a key holding a
	// value of a different kind than the command expects. The value
	// is left bytewise unchanged.
	ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

	// ErrNotInteger is returned by INCR-family commands when the
	// existing string value does not parse as a 64-bit integer.
	ErrNotInteger = errors.New("ERR value is not an integer or out of range")
)
