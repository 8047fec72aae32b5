package realtime

import (
	"context"
	"sync"
)

// LocalBroker fans events out inside one process. It is used when Redis is
// not configured, which limits live delivery to a single API instance.
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan Event]struct{})}
}

func (b *LocalBroker) Publish(_ context.Context, conversationID string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[conversationID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[conversationID] == nil {
		b.subs[conversationID] = make(map[chan Event]struct{})
	}
	b.subs[conversationID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[conversationID], ch)
			if len(b.subs[conversationID]) == 0 {
				delete(b.subs, conversationID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		release()
	}()

	return &Subscription{C: ch, close: release}, nil
}
