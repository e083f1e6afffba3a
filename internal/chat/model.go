package chat

import (
	"time"

	"pro-chat/internal/identity"
)

// ---------------------------------------------
// Database & API models
// ---------------------------------------------

type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
)

// Message is the persisted unit and the only durable state the core owns.
// Immutable once written except the Read flag, which only goes false->true.
type Message struct {
	ID        int                  `json:"id"`
	Sender    identity.Participant `json:"sender"`
	Receiver  identity.Participant `json:"receiver"`
	Content   string               `json:"content"`
	Kind      Kind                 `json:"kind"`
	FileRef   string               `json:"file_ref,omitempty"`
	FileName  string               `json:"file_name,omitempty"`
	FileSize  int64                `json:"file_size,omitempty"`
	Read      bool                 `json:"read"`
	CreatedAt time.Time            `json:"created_at"`
}

// ConversationSummary is derived, never stored. One entry per distinct
// partner the owner has exchanged messages with.
type ConversationSummary struct {
	Partner       identity.Participant `json:"partner"`
	PartnerName   string               `json:"partner_name"`
	LastMessage   string               `json:"last_message"`
	LastMessageAt time.Time            `json:"last_message_at"`
	UnreadCount   int                  `json:"unread_count"`
}

// Outbound is what a sender submits, over the socket or the REST fallback.
type Outbound struct {
	Sender   identity.Participant `json:"sender"`
	Receiver identity.Participant `json:"receiver"`
	Content  string               `json:"content"`
	Kind     Kind                 `json:"kind"`
	FileRef  string               `json:"file_ref,omitempty"`
	FileName string               `json:"file_name,omitempty"`
	FileSize int64                `json:"file_size,omitempty"`
}

// ---------------------------------------------
// Wire frames and events
// ---------------------------------------------

// Frame is the JSON a connected client sends us over the socket.
type Frame struct {
	Type     string               `json:"type"` // "send", "typing", "stop_typing"
	Receiver identity.Participant `json:"receiver"`
	Content  string               `json:"content,omitempty"`
	Kind     Kind                 `json:"kind,omitempty"`
	FileRef  string               `json:"file_ref,omitempty"`
	FileName string               `json:"file_name,omitempty"`
	FileSize int64                `json:"file_size,omitempty"`
}

// Server-pushed event payloads. Each carries a discriminating "type" field
// so one socket can multiplex all of them.

const (
	EventMessage  = "message"
	EventAck      = "ack"
	EventTyping   = "typing"
	EventPresence = "presence"
	EventUnread   = "unread_count"
	EventRefresh  = "refresh_conversations"
	EventError    = "error"
)

type messageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

type ackEvent struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message"`
	Delivered bool     `json:"delivered"`
}

type typingEvent struct {
	Type   string               `json:"type"`
	From   identity.Participant `json:"from"`
	Typing bool                 `json:"typing"`
}

type presenceEvent struct {
	Type   string               `json:"type"`
	Who    identity.Participant `json:"who"`
	Online bool                 `json:"online"`
}

type unreadEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type refreshEvent struct {
	Type string `json:"type"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
