package client

import (
	"context"
	"net/http"
	"net/url"
)

// SendChatMessage forwards one message. Failures carry the server's
// fallback text in (*Error).Response.
func (c *Client) SendChatMessage(ctx context.Context, r ChatRequest) (*ChatReply, error) {
	body, err := jsonBody(r)
	if err != nil {
		return nil, err
	}
	var out ChatReply
	if err := c.do(ctx, request{method: http.MethodPost, path: "/chatbot/message", body: body, contentType: "application/json"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartConversation opens a conversation and returns its id. The initial
// message, if any, is sent by the caller.
func (c *Client) StartConversation(ctx context.Context) (string, error) {
	var out Conversation
	if err := c.do(ctx, request{method: http.MethodPost, path: "/chatbot/conversation"}, &out); err != nil {
		return "", err
	}
	return out.ConversationID, nil
}

// EndConversation closes a conversation.
func (c *Client) EndConversation(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/chatbot/conversation/" + url.PathEscape(id) + "/end"}, nil)
}

// Capabilities reports optional chatbot features.
func (c *Client) Capabilities(ctx context.Context) (*Capabilities, error) {
	var out Capabilities
	if err := c.do(ctx, request{method: http.MethodGet, path: "/chatbot/capabilities"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportFeedback rates a conversation or message.
func (c *Client) ReportFeedback(ctx context.Context, fb Feedback) error {
	body, err := jsonBody(fb)
	if err != nil {
		return err
	}
	return c.do(ctx, request{method: http.MethodPost, path: "/chatbot/feedback", body: body, contentType: "application/json"}, nil)
}
