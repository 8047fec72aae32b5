// Package realtime fans conversation events out to live sessions. Delivery
// is best effort: slow subscribers lose events rather than block publishers.
package realtime

import (
	"context"
	"time"
)

type EventType string

const (
	EventMessageCreated   EventType = "message.created"
	EventMessageUpdated   EventType = "message.updated"
	EventConversationRead EventType = "conversation.read"
)

// Event is delivered to every session subscribed to ConversationID.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId,omitempty"`
	SenderID       string    `json:"senderId,omitempty"`
	Text           string    `json:"text,omitempty"`
	IsBlocked      bool      `json:"isBlocked,omitempty"`
	ReaderID       string    `json:"readerId,omitempty"`
	At             time.Time `json:"at"`
}

// Broker publishes events per conversation and hands out subscriptions.
type Broker interface {
	Publish(ctx context.Context, conversationID string, event Event) error
	Subscribe(ctx context.Context, conversationID string) (*Subscription, error)
}

// Subscription receives events until Close is called or its context ends.
type Subscription struct {
	C     <-chan Event
	close func()
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	if s.close != nil {
		s.close()
	}
}

const subscriberBuffer = 32
