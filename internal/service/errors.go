package service

import "errors"

var (
	ErrNotFound       = errors.New("error not found")
	ErrMalformedEvent = errors.New("error malformed event")
)
