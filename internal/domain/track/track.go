// Package track provides the Track domain entity.
package track

import "time"

// Track represents an immutable playable item supplied by the catalog.
// The engine references tracks by ID and never mutates them.
type Track struct {
	ID          string        // Catalog track ID
	Title       string        // Display title
	Artist      string        // Display artist
	Album       string        // Display album/collection name
	ArtworkURL  string        // Artwork URL
	Source      string        // Audio source locator (URL handed to the device)
	ContentType string        // Platform content type (e.g. "music", "meditation")
	Duration    time.Duration // Track duration (0 until reported by the device)
}

// HasKnownDuration reports whether the catalog supplied a duration.
// The device may still correct it once metadata is loaded.
func (t *Track) HasKnownDuration() bool {
	return t.Duration > 0
}

// IDs returns the IDs of the given tracks, preserving order.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
