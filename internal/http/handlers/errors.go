// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These codes are the stable, machine-readable half of every error envelope
// (the other half being a human-readable message). Clients branch on them;
// the Go client in internal/client maps them back to typed errors.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_transition",
//	  "message": "cannot move a resolved complaint to pending"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodeConversationEnded  = "conversation_ended"
	ErrCodeChatFailed         = "chat_failed"
	ErrCodeCreateFailed       = "create_failed"
	ErrCodeListFailed         = "list_failed"
	ErrCodeDuplicateFeedback  = "duplicate_feedback"
	ErrCodeTooManyAttachments = "too_many_attachments"
	ErrCodeAttachmentTooLarge = "attachment_too_large"
)
