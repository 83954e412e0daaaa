package mediabus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishReachesPeers(t *testing.T) {
	b := New()

	var audio, video int
	b.Subscribe(TopicPauseAudio, "audio-engine", func() { audio++ })
	b.Subscribe(TopicPauseAudio, "video-player", func() { video++ })

	b.Publish(TopicPauseAudio, "video-player")

	assert.Equal(t, 1, audio)
	assert.Equal(t, 0, video, "sender must not receive its own signal")
}

func TestBus_NoEchoToSender(t *testing.T) {
	b := New()

	var received int
	b.Subscribe(TopicYieldVideo, "audio-engine", func() { received++ })

	b.Publish(TopicYieldVideo, "audio-engine")

	assert.Equal(t, 0, received)
}

func TestBus_TopicsAreIndependent(t *testing.T) {
	b := New()

	var pause, yield int
	b.Subscribe(TopicPauseAudio, "a", func() { pause++ })
	b.Subscribe(TopicYieldVideo, "a", func() { yield++ })

	b.Publish(TopicPauseAudio, "b")

	assert.Equal(t, 1, pause)
	assert.Equal(t, 0, yield)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()

	var received int
	unsub := b.Subscribe(TopicPauseAudio, "a", func() { received++ })
	assert.Equal(t, 1, b.SubscriberCount(TopicPauseAudio))

	unsub()

	b.Publish(TopicPauseAudio, "b")
	assert.Equal(t, 0, received)
	assert.Equal(t, 0, b.SubscriberCount(TopicPauseAudio))
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	b := New()
	// Must not panic.
	b.Publish(TopicYieldVideo, "a")
}
