package main

import "errors"

// Sentinel errors returned by the store and the capacity engine.
// Callers classify them with errors.Is; anything else is treated as a
// persistence failure.
var (
	ErrUnknownEvent     = errors.New("event not found")
	ErrReservationLimit = errors.New("reservation limit exceeded")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("registration not found")
	ErrConflict         = errors.New("registration conflict")
)
