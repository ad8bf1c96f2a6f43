package models

import "errors"

// Domain error taxonomy. Services return these sentinels (possibly
// wrapped); the API layer maps them to status codes with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrCheckNotApproved    = errors.New("parcel check not approved")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrPaymentGateway      = errors.New("payment gateway error")
)
