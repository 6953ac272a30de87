package chat

import "time"

// Customer is an end user messaging through the external channel. Rows are
// created by the inbound-message workflow and never deleted here.
type Customer struct {
	UserID       string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	DisplayName  string    `gorm:"type:varchar(128)" json:"user_name"`
	PhoneNumber  string    `gorm:"type:varchar(32)" json:"phone_number"`
	AgentEnabled bool      `gorm:"not null;default:true" json:"agent_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

func (Customer) TableName() string { return "customers" }

// SessionMapping ties an opaque channel session to a customer. A customer
// accumulates sessions over time; all of them form one logical conversation.
type SessionMapping struct {
	SessionID string `gorm:"primaryKey;type:varchar(64)" json:"session_id"`
	UserID    string `gorm:"type:varchar(64);index;not null" json:"user_id"`
}

func (SessionMapping) TableName() string { return "session_mapping" }

// Message is append-only. The autoincrement id doubles as the sort key and
// the pagination cursor; the store issues ids from one sequence, so ordering
// holds across sessions too.
type Message struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string  `gorm:"type:varchar(64);index;not null" json:"session_id"`
	Payload   Payload `gorm:"column:message;type:text" json:"message"`
}

func (Message) TableName() string { return "messages" }

// Summary is the derived per-customer row shown in the conversation list.
// It is a cache over Customer+SessionMapping+Message, never persisted, and
// rebuilding it from scratch is always safe.
type Summary struct {
	UserID          string    `json:"user_id"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	MessageCount    int       `json:"message_count"`
	SessionIDs      []string  `json:"session_ids"`
	Customer        Customer  `json:"user_info"`
}
