package main

import (
	"encoding/json"
	"errors"

	"github.com/dev-dami/jobchat/internal/chat"
)

// EventSendMessage is the only event clients send over the websocket.
const EventSendMessage = "send-message"

// InboundFrame is a frame read from a realtime connection.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Text extracts the submitted text. Clients send either a bare JSON string
// or an object carrying it under "message" (or "text", as older clients do).
func (f InboundFrame) Text() (string, error) {
	var text string
	if err := json.Unmarshal(f.Data, &text); err == nil {
		return text, nil
	}

	var payload struct {
		Message string `json:"message"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(f.Data, &payload); err != nil {
		return "", errors.New("send-message data must be a string")
	}
	if payload.Message != "" {
		return payload.Message, nil
	}
	return payload.Text, nil
}

// PostMessageRequest is the body of POST /messages.
type PostMessageRequest struct {
	Message string `json:"message"`
}

// MessagesResponse is the body of GET /messages.
type MessagesResponse struct {
	Messages []chat.Message `json:"messages"`
	UserIP   string         `json:"userIP"`
}

// PostMessageResponse is the body of a successful POST /messages.
type PostMessageResponse struct {
	Success bool         `json:"success"`
	Message chat.Message `json:"message"`
	UserIP  string       `json:"userIP"`
}
