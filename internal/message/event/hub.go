package event

import (
	"sync"
)

const subscriberBuffer = 16

// Event is a change notification delivered to live query subscribers.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Payload        any    `json:"payload,omitempty"`
}

// Topic names an aggregate whose subscribers should re-evaluate on change.
func ConversationTopic(conversationID string) string { return "conversation:" + conversationID }
func UserTopic(userID string) string                 { return "user:" + userID }

// Publisher publishes change events to a topic.
type Publisher interface {
	Publish(topic string, ev Event)
}

// Subscriber attaches live subscribers to a topic.
type Subscriber interface {
	Subscribe(topic string) (<-chan Event, func())
}

// Hub is an in-process pub/sub channel per queried aggregate. Delivery to each
// subscriber is sequential over its own buffered channel; events for slow
// subscribers are dropped rather than blocking the writer.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan Event]struct{}{}}
}

// Subscribe registers a subscriber on topic. The returned cancel func tears
// the subscription down; no events are delivered after it returns.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[topic]
	if !ok {
		set = map[chan Event]struct{}{}
		h.subs[topic] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[topic]; ok {
			if _, present := set[ch]; present {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, topic)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber of topic without blocking.
func (h *Hub) Publish(topic string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[topic] {
		select {
		case ch <- ev:
		default:
		}
	}
}

var _ Publisher = (*Hub)(nil)
var _ Subscriber = (*Hub)(nil)
