package entity

import "errors"

var (
	// Reminder errors
	ErrReminderNotFound    = errors.New("reminder not found")
	ErrAlreadyAcknowledged = errors.New("reminder already acknowledged")
	ErrInvalidAction       = errors.New("invalid reminder action")

	// Registration errors
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrDuplicateEndpoint    = errors.New("registration already exists for this endpoint")
	ErrNoSubscriptions      = errors.New("No push subscriptions found")

	// Delivery errors
	ErrEndpointGone         = errors.New("push endpoint no longer exists")
	ErrChannelNotConfigured = errors.New("notification channel not configured")

	// Reconciler errors
	ErrSubscribeFailed = errors.New("platform refused to create a push subscription")

	// General errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabaseError = errors.New("database error")
)
