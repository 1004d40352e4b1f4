// Package docs holds the OpenAPI description served at /swagger when
// SWAGGER_ENABLED is set. Regenerate with `swag init -g cmd/complaintd/main.go`
// after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/complaints": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Complaints"],
                "summary": "List complaints (filtered, paginated)",
                "operationId": "listComplaints",
                "parameters": [
                    {"type": "string", "description": "User ID (demo header)", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Return 304 if ETag matches", "name": "If-None-Match", "in": "header"},
                    {"enum": ["pending", "in-progress", "resolved", "rejected"], "type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "category", "in": "query"},
                    {"enum": ["low", "medium", "high", "urgent"], "type": "string", "name": "priority", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"minimum": 1, "type": "integer", "default": 1, "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListComplaintsResponse"}, "headers": {"ETag": {"type": "string"}}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "consumes": ["multipart/form-data", "application/json"],
                "produces": ["application/json"],
                "tags": ["Complaints"],
                "summary": "Submit a complaint",
                "operationId": "createComplaint",
                "parameters": [
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "name": "title", "in": "formData", "required": true},
                    {"type": "string", "name": "category", "in": "formData", "required": true},
                    {"enum": ["low", "medium", "high", "urgent"], "type": "string", "name": "priority", "in": "formData"},
                    {"type": "string", "name": "description", "in": "formData", "required": true},
                    {"type": "string", "name": "location", "in": "formData"},
                    {"type": "file", "name": "attachments", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Complaint"}, "headers": {"Idempotency-Replayed": {"type": "string"}}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Attachment too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/complaints/search": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Complaints"],
                "summary": "Search complaints",
                "operationId": "searchComplaints",
                "parameters": [
                    {"type": "string", "name": "q", "in": "query", "required": true},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListComplaintsResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/complaints/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Complaints"],
                "summary": "Complaint counts",
                "operationId": "complaintStats",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Stats"}}
                }
            }
        },
        "/complaints/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Complaints"],
                "summary": "Fetch a complaint",
                "operationId": "getComplaint",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Complaint"}},
                    "404": {"description": "Complaint not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Complaints"],
                "summary": "Update a complaint",
                "operationId": "updateComplaint",
                "parameters": [
                    {"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateComplaintRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Complaint"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Complaint not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Status transition not allowed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["Complaints"],
                "summary": "Delete a complaint",
                "operationId": "deleteComplaint",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Complaint not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/complaints/{id}/attachments/{attachmentId}": {
            "get": {
                "produces": ["application/octet-stream"],
                "tags": ["Complaints"],
                "summary": "Download an attachment",
                "operationId": "downloadAttachment",
                "parameters": [
                    {"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true},
                    {"type": "string", "format": "uuid", "name": "attachmentId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Attachment not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chatbot/message": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Chatbot"],
                "summary": "Send a chat message",
                "operationId": "sendChatMessage",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChatMessageRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChatMessageResponse"}},
                    "400": {"description": "Empty or too long", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conversation ended", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chatbot/conversation": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Chatbot"],
                "summary": "Start a conversation",
                "operationId": "startConversation",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.ConversationStatusResponse"}}
                }
            }
        },
        "/chatbot/conversation/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Chatbot"],
                "summary": "Conversation history",
                "operationId": "conversationHistory",
                "parameters": [
                    {"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ConversationHistoryResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chatbot/conversation/{id}/end": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Chatbot"],
                "summary": "End a conversation",
                "operationId": "endConversation",
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ConversationStatusResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chatbot/capabilities": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Chatbot"],
                "summary": "Chatbot capabilities",
                "operationId": "chatCapabilities",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Capabilities"}}}
            }
        },
        "/chatbot/metrics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Chatbot"],
                "summary": "Chatbot usage metrics",
                "operationId": "chatMetrics",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/services.ChatMetrics"}}}
            }
        },
        "/chatbot/feedback": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Chatbot"],
                "summary": "Rate a conversation",
                "operationId": "leaveFeedback",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LeaveFeedbackRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.LeaveFeedbackResponse"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Not allowed to rate this message", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Conversation or message not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Feedback already exists", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Attachment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "complaintId": {"type": "string"},
                "filename": {"type": "string"},
                "contentType": {"type": "string"},
                "size": {"type": "integer"},
                "createdAt": {"type": "string"}
            }
        },
        "domain.Complaint": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "userId": {"type": "string"},
                "title": {"type": "string"},
                "category": {"type": "string"},
                "priority": {"type": "string"},
                "status": {"type": "string"},
                "description": {"type": "string"},
                "location": {"type": "string"},
                "submittedAt": {"type": "string"},
                "updatedAt": {"type": "string"},
                "attachments": {"type": "array", "items": {"$ref": "#/definitions/domain.Attachment"}}
            }
        },
        "domain.ChatMessage": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "conversationId": {"type": "string"},
                "sender": {"type": "string"},
                "text": {"type": "string"},
                "intent": {"type": "string"},
                "confidence": {"type": "number"},
                "createdAt": {"type": "string"}
            }
        },
        "domain.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "totalPages": {"type": "integer"}
            }
        },
        "domain.Stats": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "pending": {"type": "integer"},
                "resolved": {"type": "integer"},
                "rejected": {"type": "integer"}
            }
        },
        "handlers.ChatMessageRequest": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "I want to report a pothole"},
                "conversationId": {"type": "string"}
            }
        },
        "handlers.ChatMessageResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "conversationId": {"type": "string"},
                "messageId": {"type": "string"},
                "intent": {"type": "string"},
                "confidence": {"type": "number"},
                "entities": {"type": "array", "items": {"type": "object"}},
                "suggestions": {"type": "array", "items": {"type": "string"}},
                "timestamp": {"type": "string"}
            }
        },
        "handlers.ConversationHistoryResponse": {
            "type": "object",
            "properties": {
                "conversationId": {"type": "string"},
                "title": {"type": "string"},
                "status": {"type": "string"},
                "history": {"type": "array", "items": {"$ref": "#/definitions/domain.ChatMessage"}},
                "pagination": {"$ref": "#/definitions/domain.Pagination"}
            }
        },
        "handlers.ConversationStatusResponse": {
            "type": "object",
            "properties": {
                "conversationId": {"type": "string"},
                "status": {"type": "string", "example": "started"},
                "timestamp": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "resource not found"},
                "response": {"type": "string"},
                "details": {"type": "array", "items": {"$ref": "#/definitions/validation.FieldError"}}
            }
        },
        "handlers.LeaveFeedbackRequest": {
            "type": "object",
            "required": ["conversationId", "rating"],
            "properties": {
                "conversationId": {"type": "string"},
                "messageId": {"type": "string"},
                "rating": {"type": "integer", "enum": [-1, 1]},
                "comment": {"type": "string", "maxLength": 1000}
            }
        },
        "handlers.LeaveFeedbackResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "example": "received"},
                "timestamp": {"type": "string"}
            }
        },
        "handlers.ListComplaintsResponse": {
            "type": "object",
            "properties": {
                "complaints": {"type": "array", "items": {"$ref": "#/definitions/domain.Complaint"}},
                "pagination": {"$ref": "#/definitions/domain.Pagination"}
            }
        },
        "handlers.UpdateComplaintRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "category": {"type": "string"},
                "priority": {"type": "string"},
                "status": {"type": "string", "example": "in-progress"},
                "description": {"type": "string"},
                "location": {"type": "string"}
            }
        },
        "services.Capabilities": {
            "type": "object",
            "properties": {
                "capabilities": {"type": "array", "items": {"type": "string"}},
                "features": {"type": "object", "additionalProperties": {"type": "boolean"}}
            }
        },
        "services.ChatMetrics": {
            "type": "object",
            "properties": {
                "totalConversations": {"type": "integer"},
                "activeConversations": {"type": "integer"},
                "totalMessages": {"type": "integer"},
                "averageSessionDuration": {"type": "number"},
                "feedbackCount": {"type": "integer"},
                "satisfactionScore": {"type": "number"}
            }
        },
        "validation.FieldError": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Complaint Desk API",
	Description:      "Citizen complaint submission and tracking with a rule-based assistant.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
