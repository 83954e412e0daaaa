// Package session provides the playback Session domain entity.
package session

// Session represents one playback attempt of one track. A new session is
// created on every track bind and torn down before the next bind.
type Session struct {
	SessionID      string // Engine-lifetime identifier, shared by all sessions
	TrackID        string // Track bound for this attempt
	legacyRecorded bool   // In-progress legacy play already recorded
}

// New creates a session for a fresh track bind.
func New(sessionID, trackID string) *Session {
	return &Session{
		SessionID: sessionID,
		TrackID:   trackID,
	}
}

// MarkLegacyRecorded flips the one-shot legacy-play flag.
// Returns true only on the call that performed the flip, so the gated
// in-progress record fires at most once per track-play.
func (s *Session) MarkLegacyRecorded() bool {
	if s.legacyRecorded {
		return false
	}
	s.legacyRecorded = true
	return true
}
