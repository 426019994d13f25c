package message

// This file provides the common data objects used by the rest of the
// program.

import (
	"time"
	"unicode/utf8"
)

// Identity names the principal whose messages are being swept.  It is
// resolved once per run and never changes afterwards.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Author is the user that wrote a message.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Message is a single channel message as delivered by the chat API.
// Messages are never constructed locally outside of tests.
type Message struct {
	// The snowflake ID of the message.  IDs sort by creation time,
	// so a larger ID is a more recent message.
	ID string `json:"id"`

	ChannelID string `json:"channel_id"`

	Author Author `json:"author"`

	Content string `json:"content"`

	Timestamp time.Time `json:"timestamp"`
}

// AuthoredBy reports whether the message was written by id.
func (m *Message) AuthoredBy(id Identity) bool {
	return m.Author.ID == id.ID
}

// Preview returns the message content cut to at most n runes, with
// "..." appended when anything was cut.
func (m *Message) Preview(n int) string {
	if utf8.RuneCountInString(m.Content) <= n {
		return m.Content
	}
	runes := []rune(m.Content)
	return string(runes[:n]) + "..."
}
