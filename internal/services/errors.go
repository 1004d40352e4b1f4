// Package services defines the business logic for complaints, conversations,
// and feedback. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Complaint-related errors.
var (
	// ErrComplaintNotFound indicates that the requested complaint does not
	// exist or is not accessible to the current user.
	ErrComplaintNotFound = errors.New("complaint not found")

	// ErrAttachmentNotFound indicates that the requested attachment does not
	// exist on a complaint owned by the current user.
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrInvalidComplaint is wrapped by validation failures on complaint input.
	ErrInvalidComplaint = errors.New("invalid complaint")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the complaint's current status.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrTooManyAttachments is returned when a submission carries more files
	// than the configured maximum.
	ErrTooManyAttachments = errors.New("too many attachments")

	// ErrAttachmentTooLarge is returned when one file exceeds the configured
	// per-attachment limit.
	ErrAttachmentTooLarge = errors.New("attachment too large")
)

// Conversation-related errors.
var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or is not accessible to the current user.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrConversationEnded is returned when a message is sent to a
	// conversation that has been ended.
	ErrConversationEnded = errors.New("conversation has ended")

	// ErrEmptyMessage is returned when a chat message is blank.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a chat message exceeds the configured
	// maximum length.
	ErrTooLong = errors.New("message too long")
)

// Feedback-related errors.
var (
	// ErrInvalidFeedback is returned when a rating is outside the allowed set
	// (currently -1 or 1).
	ErrInvalidFeedback = errors.New("rating must be -1 or 1")

	// ErrMessageNotFound indicates that the referenced message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbiddenFeedback is returned when a user attempts to rate a message
	// they are not permitted to rate.
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this message")

	// ErrDuplicateFeedback is returned when a user attempts to rate a message
	// that they have already rated.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)
