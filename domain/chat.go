package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author side of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one immutable entry of a conversation transcript.
// Transcripts are append-only: once appended a message never changes.
type ChatMessage struct {
	ID         uuid.UUID
	Role       Role
	RawContent string
	Timestamp  time.Time
}

// Citation is a deduplicated reference to a source document surfaced
// alongside an assistant answer. Derived at parse time, never persisted.
// Within one parsed response SourceName values are unique and Index keeps
// the first-seen order from the raw text.
type Citation struct {
	Index      string
	SourceName string
	Preview    string
}
