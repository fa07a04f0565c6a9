package models

import (
	"time"
)

type MessageStatus string

const (
	MessageStatusPending MessageStatus = "pending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

// IsValid reports whether s is one of the known message statuses.
func (s MessageStatus) IsValid() bool {
	switch s {
	case MessageStatusPending, MessageStatusSent, MessageStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s permits no further status transitions.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed
}

// DelayClass controls how AddMessage validates the delivery time.
// Immediate messages are due at creation and bypass the future-time check.
type DelayClass string

const (
	DelayImmediate DelayClass = "immediate"
	DelayScheduled DelayClass = "scheduled"
)

// Message is one queued text bound to a recipient and a delivery instant.
type Message struct {
	ID            string        `json:"id" db:"id"`
	SenderID      string        `json:"senderId" db:"sender_id"`
	RecipientName string        `json:"recipientName" db:"recipient_name"`
	Text          string        `json:"text" db:"text"`
	DeliverAfter  time.Time     `json:"deliverAfter" db:"deliver_after"`
	Status        MessageStatus `json:"status" db:"status"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsDue reports whether the message is eligible for a delivery attempt at now.
func (m *Message) IsDue(now time.Time) bool {
	return m.Status == MessageStatusPending && !m.DeliverAfter.After(now)
}

// MessageUpdate carries the fields a caller may change while a message is
// still pending. Nil fields are left untouched.
type MessageUpdate struct {
	RecipientName *string    `json:"recipientName,omitempty"`
	Text          *string    `json:"text,omitempty"`
	DeliverAfter  *time.Time `json:"deliverAfter,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u MessageUpdate) Empty() bool {
	return u.RecipientName == nil && u.Text == nil && u.DeliverAfter == nil
}

// MessageFilter selects messages by status for listing.
type MessageFilter string

const (
	FilterAll     MessageFilter = "all"
	FilterPending MessageFilter = MessageFilter(MessageStatusPending)
	FilterSent    MessageFilter = MessageFilter(MessageStatusSent)
	FilterFailed  MessageFilter = MessageFilter(MessageStatusFailed)
)

// IsValid reports whether f is a known filter value.
func (f MessageFilter) IsValid() bool {
	switch f {
	case FilterAll, FilterPending, FilterSent, FilterFailed:
		return true
	}
	return false
}

// MessageStats holds per-status counts for one sender.
type MessageStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}
