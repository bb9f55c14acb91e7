package domain

import "errors"

var (
	// ErrValidation marks input that is rejected before any state is persisted.
	ErrValidation = errors.New("validation error")
	// ErrMalformedURL marks a base URL that cannot be parsed by the URL builder.
	ErrMalformedURL = errors.New("malformed url")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	// ErrPersistence marks store failures (constraint violation, connectivity loss).
	ErrPersistence = errors.New("persistence error")
)
