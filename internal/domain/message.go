package domain

import (
	"time"
)

// System message type constants.
const (
	MessageTypeAnnouncement = "announcement"
	MessageTypeMaintenance  = "maintenance"
	MessageTypeUpdate       = "update"
	MessageTypeWarning      = "warning"
	MessageTypeAuthChange   = "auth_level_change"
)

// System message priority constants.
const (
	MessagePriorityLow    = "low"
	MessagePriorityMedium = "medium"
	MessagePriorityHigh   = "high"
)

// SystemMessage is the durable record created by a trio dispatch. Rollback
// marks it inactive rather than deleting it.
type SystemMessage struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Creator   string         `json:"creator,omitempty"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ValidMessageTypes returns the set of valid system message types.
func ValidMessageTypes() []string {
	return []string{
		MessageTypeAnnouncement,
		MessageTypeMaintenance,
		MessageTypeUpdate,
		MessageTypeWarning,
		MessageTypeAuthChange,
	}
}

// IsValidMessageType checks whether t is a valid system message type.
func IsValidMessageType(t string) bool {
	for _, v := range ValidMessageTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// ValidMessagePriorities returns the set of valid priorities.
func ValidMessagePriorities() []string {
	return []string{MessagePriorityLow, MessagePriorityMedium, MessagePriorityHigh}
}

// IsValidMessagePriority checks whether p is a valid priority.
func IsValidMessagePriority(p string) bool {
	for _, v := range ValidMessagePriorities() {
		if v == p {
			return true
		}
	}
	return false
}
