package models

import "time"

// Ban cascade steps, executed in this order.
const (
	CascadeStepMessagesSent         = "messages_sent"
	CascadeStepConversationMessages = "conversation_messages"
	CascadeStepConversations        = "conversations"
	CascadeStepLikes                = "likes"
)

// BanCascadeSteps lists every step of the ban cascade in execution order.
var BanCascadeSteps = []string{
	CascadeStepMessagesSent,
	CascadeStepConversationMessages,
	CascadeStepConversations,
	CascadeStepLikes,
}

// BanCascade is the completion marker for a member's ban cascade.
type BanCascade struct {
	MemberID       string
	StartedAt      time.Time
	CompletedAt    *time.Time
	StepsCompleted []string
	LastError      *string
}

// IsComplete reports whether every step has finished.
func (b *BanCascade) IsComplete() bool {
	return b != nil && b.CompletedAt != nil
}
