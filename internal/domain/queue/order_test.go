package queue

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aveline/playhead/internal/domain/track"
)

func makeTracks(ids ...string) []track.Track {
	tracks := make([]track.Track, len(ids))
	for i, id := range ids {
		tracks[i] = track.Track{ID: id, Title: "Track " + id}
	}
	return tracks
}

func trackIDs(tracks []track.Track) []string {
	return track.IDs(tracks)
}

func TestShuffledOrder_PinnedFirst(t *testing.T) {
	tracks := makeTracks("a", "b", "c", "d", "e")

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out := ShuffledOrder(tracks, 2, rng)

		assert.Len(t, out, len(tracks))
		assert.Equal(t, "c", out[0].ID, "pinned track must come first")
		assert.ElementsMatch(t, trackIDs(tracks), trackIDs(out))
	}
}

func TestShuffledOrder_Deterministic(t *testing.T) {
	tracks := makeTracks("a", "b", "c", "d", "e", "f")

	first := ShuffledOrder(tracks, 0, rand.New(rand.NewSource(42)))
	second := ShuffledOrder(tracks, 0, rand.New(rand.NewSource(42)))

	assert.Equal(t, trackIDs(first), trackIDs(second))
}

func TestShuffledOrder_PinnedOutOfRange(t *testing.T) {
	tracks := makeTracks("a", "b", "c")

	out := ShuffledOrder(tracks, -1, rand.New(rand.NewSource(1)))

	assert.Len(t, out, 3)
	assert.ElementsMatch(t, trackIDs(tracks), trackIDs(out))
}

func TestShuffledOrder_DoesNotMutateInput(t *testing.T) {
	tracks := makeTracks("a", "b", "c", "d")

	ShuffledOrder(tracks, 0, rand.New(rand.NewSource(7)))

	assert.Equal(t, []string{"a", "b", "c", "d"}, trackIDs(tracks))
}
