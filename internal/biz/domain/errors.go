package domain

import "errors"

var (
	// ErrUnsupported is returned by transports that cannot perform a primitive
	ErrUnsupported = errors.New("operation not supported by transport")
	// ErrNotFound is returned when a looked-up entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnknownFeature is returned for feature names outside the fixed set
	ErrUnknownFeature = errors.New("unknown feature")
)
