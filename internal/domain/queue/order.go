package queue

import (
	"math/rand"

	"github.com/aveline/playhead/internal/domain/track"
)

// ShuffledOrder returns a randomized permutation of tracks with the element
// at pinned placed first. The pinned element is excluded from the shuffle so
// the currently playing track always survives at position 0.
// A pinned index outside the slice shuffles everything.
func ShuffledOrder(tracks []track.Track, pinned int, rng *rand.Rand) []track.Track {
	rest := make([]track.Track, 0, len(tracks))
	var head []track.Track
	for i, t := range tracks {
		if i == pinned {
			head = append(head, t)
			continue
		}
		rest = append(rest, t)
	}

	intn := rand.Intn
	if rng != nil {
		intn = rng.Intn
	}
	for i := len(rest) - 1; i > 0; i-- {
		j := intn(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}

	return append(head, rest...)
}
