// Package model defines the domain value types of the reservation core and
// the state machines that govern them. These sentinel errors describe
// business-rule violations raised by state transitions. Handlers translate
// them into stable HTTP statuses; services compare them with errors.Is.
package model

import "errors"

// ErrValidation is returned when a caller supplies structurally invalid
// input, such as an empty seat list. Handlers should translate this
// into an HTTP 400 response.
var ErrValidation = errors.New("validation failed")

// ErrInvalidState is returned when a state transition is requested that
// the state machine does not allow, for example confirming a reservation
// that is no longer PENDING. Handlers should translate this into an
// HTTP 409 response.
var ErrInvalidState = errors.New("invalid state transition")

// ErrSeatNotAvailable is returned when a reservation attempt touches a
// seat that is not AVAILABLE. The whole reservation fails; no partial
// holds are ever created. Handlers should translate this into an HTTP
// 409 response.
var ErrSeatNotAvailable = errors.New("seat not available")

// ErrInsufficientFunds is returned when debiting a balance would drive
// it negative. The debit is rejected as a whole and must never be
// retried automatically. Handlers should translate this into an HTTP
// 400 response.
var ErrInsufficientFunds = errors.New("insufficient funds")
