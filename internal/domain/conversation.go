package domain

// Message is a single persisted conversation message (one side of a turn).
type Message struct {
	PK             string
	SK             string
	ConversationID string
	Role           string
	Content        string
	TTL            int64
}

// ConversationMeta stores aggregate conversation state, including the intent
// the conversation was last routed to.
type ConversationMeta struct {
	PK             string
	SK             string
	ConversationID string
	LastActivity   string
	LastIntent     string
	Turns          int
	TTL            int64
}
