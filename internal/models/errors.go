/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "errors"

// Domain-level sentinel errors for scheduling logic. All are local,
// recoverable conditions surfaced to the caller; the API layer maps them to
// status codes. Wrap with fmt.Errorf("...: %w", Err...) to attach detail such
// as the offending slot time.
var (
	// ErrNotFound indicates a slot, booking, or provider that does not exist
	// or does not belong to the given owner.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyBooked indicates the slot was claimed, possibly by a racing
	// request that won the conditional update.
	ErrAlreadyBooked = errors.New("slot already booked")

	// ErrTooLate indicates the slot starts inside the booking lead window
	// (or is already in the past).
	ErrTooLate = errors.New("slot starts too soon to book")

	// ErrProviderInactive indicates the provider no longer accepts bookings.
	ErrProviderInactive = errors.New("provider is inactive")

	// ErrInvalidState indicates an operation against a terminal or
	// wrong-state booking.
	ErrInvalidState = errors.New("booking is not in a valid state for this operation")

	// ErrInvalidOperation indicates a disallowed mutation, such as deleting
	// a claimed slot.
	ErrInvalidOperation = errors.New("operation not allowed")
)
