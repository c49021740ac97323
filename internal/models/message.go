package models

// Role tags the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of the conversation about a selected file.
type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}
