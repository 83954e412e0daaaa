// Package mediabus provides the page-wide media arbitration bus.
//
// The bus carries the two signals of the "only one media plays at a time"
// convention: the audio engine emits yield-video before it starts playing,
// and any video player emits pause-audio when it takes focus. Signals carry
// no payload beyond their topic. A participant never receives its own
// emissions, so the engine cannot pause itself by yielding.
package mediabus

import (
	"sync"

	"github.com/google/uuid"
)

// Topic identifies a broadcast signal.
type Topic string

const (
	// TopicYieldVideo asks video players to stop before audio resumes.
	TopicYieldVideo Topic = "yield-video"
	// TopicPauseAudio asks the audio engine to pause because a video took
	// focus.
	TopicPauseAudio Topic = "pause-audio"
)

type handler struct {
	participantID string
	fn            func()
}

// Bus is an in-process publish/subscribe bus with named topics.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic]map[string]handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic]map[string]handler),
	}
}

// Subscribe registers fn for a topic on behalf of participantID and returns
// an unsubscribe function. Publications from the same participant are
// skipped.
func (b *Bus) Subscribe(topic Topic, participantID string, fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[string]handler)
	}
	id := uuid.New().String()
	b.handlers[topic][id] = handler{participantID: participantID, fn: fn}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[topic], id)
	}
}

// Publish delivers the signal to every subscriber of the topic except those
// registered by the sender. Delivery is synchronous: when Publish returns,
// all peers have observed the signal.
func (b *Bus) Publish(topic Topic, from string) {
	b.mu.RLock()
	fns := make([]func(), 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		if h.participantID == from {
			continue
		}
		fns = append(fns, h.fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// SubscriberCount returns the number of subscribers for a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}
