// Package services defines the business logic for medical profiles, dose
// events, and adherence analytics. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

var (
	// ErrProfileNotFound indicates that the user has no medical profile yet.
	ErrProfileNotFound = errors.New("medical profile not found")

	// ErrMedicineNotFound indicates that the referenced medication schedule
	// does not exist on the user's profile.
	ErrMedicineNotFound = errors.New("medicine not found")

	// ErrEmptyName is returned when a medicine is submitted without a name.
	ErrEmptyName = errors.New("medicine name is required")

	// ErrInvalidTime is returned when a time-of-day entry is not a
	// well-formed "HH:MM" string.
	ErrInvalidTime = errors.New("times must be HH:MM strings")

	// ErrNegativeDuration is returned when a schedule duration below zero
	// days is submitted.
	ErrNegativeDuration = errors.New("duration must be >= 0 days")

	// ErrInvalidStatus is returned when a dose outcome is not one of
	// "taken", "skipped", or "missed".
	ErrInvalidStatus = errors.New("status must be taken, skipped, or missed")
)
