package core

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	// ErrExpired señala un intercambio sobre un código/nonce ya consumido.
	ErrExpired = errors.New("expired")
)
