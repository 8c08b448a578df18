package model

// Message is a single role-tagged chat entry
type Message struct {
	Role    Role   `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// Conversation is the ordered message list sent in one completion request.
// It is built fresh for every question and never reused.
type Conversation struct {
	Messages []Message `json:"messages" bson:"messages"`
}

// NewConversation returns the instruction message followed by the user message
func NewConversation(instruction, question string) *Conversation {
	return &Conversation{
		Messages: []Message{
			{Role: RoleSystem, Content: instruction},
			{Role: RoleUser, Content: question},
		},
	}
}

// SystemPrompt returns the content of the first system message, if any
func (c *Conversation) SystemPrompt() string {
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			return m.Content
		}
	}
	return ""
}
