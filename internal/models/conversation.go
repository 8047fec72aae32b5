package models

import "time"

const (
	// BlockedMessagePlaceholder replaces the text of blocked messages for display.
	BlockedMessagePlaceholder = "[message hidden by moderation]"

	// DeletedMessagePlaceholder replaces the stored text of messages deleted by their sender.
	DeletedMessagePlaceholder = "[message deleted]"

	// BlockReasonDeletedBySender is reserved for sender deletions.
	BlockReasonDeletedBySender = "deleted_by_sender"
)

// Conversation between an unordered pair of members. ParticipantLow always
// sorts before ParticipantHigh.
type Conversation struct {
	ID               string
	ParticipantLow   string
	ParticipantHigh  string
	LastMessage      string
	LastMessageAt    *time.Time
	IsApprovedByWali bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanonicalPair orders two member ids so that (a, b) and (b, a) map to the same key.
func CanonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// HasParticipant reports whether memberID is one of the two participants.
func (c *Conversation) HasParticipant(memberID string) bool {
	return c.ParticipantLow == memberID || c.ParticipantHigh == memberID
}

// OtherParticipant returns the participant that is not memberID.
func (c *Conversation) OtherParticipant(memberID string) string {
	if c.ParticipantLow == memberID {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           string
	IsBlocked      bool
	BlockReason    *string
	IsRead         bool
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// IsDeleted reports whether the message was removed by its sender.
func (m *Message) IsDeleted() bool {
	return m.IsBlocked && m.BlockReason != nil && *m.BlockReason == BlockReasonDeletedBySender
}

// DisplayText is the text shown to participants.
func (m *Message) DisplayText() string {
	if m.IsDeleted() {
		return DeletedMessagePlaceholder
	}
	if m.IsBlocked {
		return BlockedMessagePlaceholder
	}
	return m.Text
}
