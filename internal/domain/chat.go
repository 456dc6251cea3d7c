package domain

// ChatMessage is the provider-agnostic chat message shape shared by the
// memory indexer, the LLM integrations, and the history store.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
