package domain

// AgentType tags a conversation with the agent that owns it.
type AgentType string

const (
	AgentOnboarding AgentType = "onboarding"
	AgentChat       AgentType = "chat"
)

// Message is a single persisted conversation message.
type Message struct {
	PK             string
	SK             string
	ConversationID string
	Role           string
	Content        string
	TTL            int64
}

// ConversationMeta stores aggregate conversation state. A conversation
// belongs to exactly one user.
type ConversationMeta struct {
	PK             string
	SK             string
	ConversationID string
	UserID         string
	AgentType      AgentType
	LastActivity   string
	Turns          int
	TTL            int64
}
