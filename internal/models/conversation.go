package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
	RoleSystem    = "system"
)

const (
	ConversationActive   = "active"
	ConversationArchived = "archived"
)

// Conversation is created on the first message of a session and never
// hard-deleted; archival is a status change.
type Conversation struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionKey     string    `gorm:"column:session_key;type:uuid;uniqueIndex" json:"session_key"`
	CustomerID     *string   `gorm:"column:customer_id;type:uuid;index" json:"customer_id,omitempty"`
	Locale         string    `gorm:"column:locale;type:text" json:"locale"` // "ar" | "en"
	Status         string    `gorm:"column:status;type:text" json:"status"` // "active" | "archived"
	MessageCount   int       `gorm:"column:message_count" json:"message_count"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	LastActivityAt time.Time `gorm:"column:last_activity_at;type:timestamptz;index" json:"last_activity_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Message rows are append-only and immutable once persisted. Order within a
// conversation is monotonic by created_at.
type Message struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string         `gorm:"column:conversation_id;type:uuid;index" json:"conversation_id"`
	Role           string         `gorm:"column:role;type:text" json:"role"`
	Content        string         `gorm:"column:content;type:text" json:"content"`
	FunctionCalls  datatypes.JSON `gorm:"column:function_calls;type:jsonb" json:"function_calls,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// FunctionCall is the persisted shape of one tool invocation requested by an
// assistant message (stored as a JSON array in Message.FunctionCalls).
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}
