package chat

import "time"

// Conversation is an anonymous, in-memory thread bound to one hosted agent.
type Conversation struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	CreatedAt time.Time `json:"createdAt"`
}
