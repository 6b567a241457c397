package service

import "errors"

var (
	// ErrNotFound means the addressed site, counterpart or pair does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput means the request was rejected before touching storage.
	ErrInvalidInput = errors.New("invalid input")
)
