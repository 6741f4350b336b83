package models

import "encoding/json"

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is a single entry in the chat log.
type ChatMessage struct {
	ID                int64  `json:"id"`
	Text              string `json:"text"`
	Sender            Sender `json:"sender"`
	ShowFeedback      bool   `json:"showFeedback,omitempty"`
	FeedbackSubmitted bool   `json:"feedbackSubmitted,omitempty"`
}

// ConversationContext is the continuation state handed back by the backend
// after every chat turn. Conversation is kept as raw JSON and replayed
// unchanged on the next request.
type ConversationContext struct {
	AwaitingClarification bool            `json:"awaiting_clarification"`
	Conversation          json.RawMessage `json:"conversation"`
}

// EmptyConversation is the conversation sent before the backend returned one.
var EmptyConversation = json.RawMessage(`[]`)
