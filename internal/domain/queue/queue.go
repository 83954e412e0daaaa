// Package queue provides the playback queue with shuffle bookkeeping.
//
// The queue keeps two parallel orders: the display order played by the
// engine, and the original order retained while shuffle is enabled so it can
// be restored exactly. Once the two diverge, the only safe anchor between
// them is a track ID, never a numeric index.
package queue

import (
	"math/rand"

	"github.com/aveline/playhead/internal/domain/track"
)

// Queue owns the ordered play sequence and the current-position pointer.
// It is a plain data structure; the engine serializes access to it.
type Queue struct {
	tracks       []track.Track // display order
	original     []track.Track // order before shuffling
	currentIndex int           // -1 when empty
	shuffled     bool

	rng *rand.Rand // nil uses the global source
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		tracks:       make([]track.Track, 0),
		original:     make([]track.Track, 0),
		currentIndex: -1,
	}
}

// NewSeeded creates an empty queue with a deterministic shuffle source.
func NewSeeded(seed int64) *Queue {
	q := New()
	q.rng = rand.New(rand.NewSource(seed))
	return q
}

// Current returns the track at the current position, or nil if the queue is
// empty.
func (q *Queue) Current() *track.Track {
	if q.currentIndex < 0 || q.currentIndex >= len(q.tracks) {
		return nil
	}
	return &q.tracks[q.currentIndex]
}

// CurrentIndex returns the current position (-1 when empty).
func (q *Queue) CurrentIndex() int {
	return q.currentIndex
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.tracks) == 0
}

// HasNext returns true if there is a track after the current one.
func (q *Queue) HasNext() bool {
	return q.currentIndex >= 0 && q.currentIndex < len(q.tracks)-1
}

// Shuffled returns whether shuffle is enabled.
func (q *Queue) Shuffled() bool {
	return q.shuffled
}

// Tracks returns a copy of the display order.
func (q *Queue) Tracks() []track.Track {
	result := make([]track.Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// Replace sets the queue to the given tracks and positions the pointer on
// pinnedID (0 if absent). The original order mirrors the given order. If
// shuffle is enabled the display order is immediately re-derived with the
// pinned track first.
func (q *Queue) Replace(tracks []track.Track, pinnedID string) {
	q.tracks = make([]track.Track, len(tracks))
	copy(q.tracks, tracks)
	q.original = make([]track.Track, len(tracks))
	copy(q.original, tracks)

	if len(q.tracks) == 0 {
		q.currentIndex = -1
		return
	}

	q.currentIndex = 0
	if idx := indexOf(q.tracks, pinnedID); idx >= 0 {
		q.currentIndex = idx
	}

	if q.shuffled {
		q.tracks = ShuffledOrder(q.tracks, q.currentIndex, q.rng)
		q.currentIndex = 0
	}
}

// InsertAfterCurrent makes t the current track. If t is already queued the
// pointer moves to its existing position and nothing is inserted. Otherwise
// t is spliced immediately after the current position in the display order,
// and after the currently playing track in the original order. The original
// insertion point is found by the playing track's ID, not by index, because
// the two orders diverge under shuffle.
func (q *Queue) InsertAfterCurrent(t track.Track) {
	if len(q.tracks) == 0 {
		q.tracks = []track.Track{t}
		q.original = []track.Track{t}
		q.currentIndex = 0
		return
	}

	if idx := indexOf(q.tracks, t.ID); idx >= 0 {
		q.currentIndex = idx
		return
	}

	// Tracks queued but none selected yet (append never moves the pointer):
	// there is no playing track to splice after, so t goes to the front.
	if q.currentIndex < 0 {
		q.tracks = splice(q.tracks, 0, t)
		q.original = splice(q.original, 0, t)
		q.currentIndex = 0
		return
	}

	playingID := q.tracks[q.currentIndex].ID

	q.tracks = splice(q.tracks, q.currentIndex+1, t)
	q.currentIndex++

	origIdx := indexOf(q.original, playingID)
	q.original = splice(q.original, origIdx+1, t)
}

// Append pushes t to the end of both orders without touching the pointer.
func (q *Queue) Append(t track.Track) {
	q.tracks = append(q.tracks, t)
	q.original = append(q.original, t)
}

// SetShuffle enables or disables shuffle.
//
// Enabling derives a randomized display order with the current track pinned
// first and moves the pointer to 0. Disabling restores the original order and
// relocates the pointer by the playing track's ID, falling back to 0 if the
// ID cannot be found. A queue with no selected track keeps the pointer unset
// through both transitions.
func (q *Queue) SetShuffle(enable bool) {
	if enable == q.shuffled {
		return
	}
	q.shuffled = enable

	if len(q.tracks) == 0 {
		return
	}

	if enable {
		q.tracks = ShuffledOrder(q.tracks, q.currentIndex, q.rng)
		if q.currentIndex >= 0 {
			q.currentIndex = 0
		}
		return
	}

	// No track selected: restore the original order and leave the pointer
	// unset.
	if q.currentIndex < 0 {
		q.tracks = make([]track.Track, len(q.original))
		copy(q.tracks, q.original)
		return
	}

	playingID := q.tracks[q.currentIndex].ID
	q.tracks = make([]track.Track, len(q.original))
	copy(q.tracks, q.original)

	q.currentIndex = 0
	if idx := indexOf(q.tracks, playingID); idx >= 0 {
		q.currentIndex = idx
	}
}

// MoveTo sets the pointer to index and returns the track there.
// Returns nil if the index is out of bounds.
func (q *Queue) MoveTo(index int) *track.Track {
	if index < 0 || index >= len(q.tracks) {
		return nil
	}
	q.currentIndex = index
	return q.Current()
}

// Clear empties both orders and resets the pointer.
func (q *Queue) Clear() {
	q.tracks = q.tracks[:0]
	q.original = q.original[:0]
	q.currentIndex = -1
}

func indexOf(tracks []track.Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func splice(tracks []track.Track, at int, t track.Track) []track.Track {
	if at < 0 || at > len(tracks) {
		at = len(tracks)
	}
	result := make([]track.Track, 0, len(tracks)+1)
	result = append(result, tracks[:at]...)
	result = append(result, t)
	result = append(result, tracks[at:]...)
	return result
}
