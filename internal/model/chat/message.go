package chat

import "time"

// Message is one transcript entry of a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ToolCalls      int       `json:"toolCalls,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
