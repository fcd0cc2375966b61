package domain

import "time"

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// TimestampLayout is the hour:minute form messages are stamped with
const TimestampLayout = "15:04"

// Message represents a chat message in a session
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp"`
}

// FormatTimestamp renders t the way message timestamps are displayed
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
