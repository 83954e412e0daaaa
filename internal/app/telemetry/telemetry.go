// Package telemetry defines the engine's outbound tracking contracts.
//
// The Bridge accumulates listened time for the credit system across one
// track-play; the PlayLogger writes legacy play records. Both are fed only
// by the engine, which guarantees the finalize-before-start ordering between
// consecutive track-plays.
package telemetry

import (
	"context"
	"time"
)

// TrackingState is a snapshot of the bridge's accumulation for the current
// track-play.
type TrackingState struct {
	TrackID     string
	ContentType string
	Duration    time.Duration
	Position    time.Duration
	Playing     bool
	Active      bool
}

// Bridge receives the engine's per-track tracking lifecycle.
//
// The engine calls StartTracking exactly once per track bind, streams
// UpdatePlayTime while the track is current, and closes the cycle with either
// FinalizeTracking (submit accumulated time) or ResetTracking (discard).
type Bridge interface {
	// StartTracking opens an accumulation cycle for a track.
	StartTracking(trackID, contentType string, duration time.Duration)
	// UpdatePlayTime reports playhead progress and whether the playhead is
	// actually advancing.
	UpdatePlayTime(position time.Duration, playing bool)
	// FinalizeTracking submits the accumulated time and closes the cycle.
	FinalizeTracking(ctx context.Context) error
	// ResetTracking discards the cycle without submitting.
	ResetTracking()
	// Snapshot returns the current accumulation state.
	Snapshot() TrackingState
}

// PlayRecord is one legacy play event.
type PlayRecord struct {
	TrackID        string `json:"trackId"`
	DurationPlayed int    `json:"durationPlayed"` // whole seconds
	Completed      bool   `json:"completed"`
	SessionID      string `json:"sessionId"`
}

// PlayLogger writes legacy play records.
type PlayLogger interface {
	RecordPlay(ctx context.Context, rec PlayRecord) error
}

// NopBridge is a Bridge that drops everything. Used when the credit
// collaborator is disabled.
type NopBridge struct{}

func (NopBridge) StartTracking(string, string, time.Duration) {}
func (NopBridge) UpdatePlayTime(time.Duration, bool)          {}
func (NopBridge) FinalizeTracking(context.Context) error      { return nil }
func (NopBridge) ResetTracking()                              {}
func (NopBridge) Snapshot() TrackingState                     { return TrackingState{} }

// NopPlayLogger drops play records. Used when the playlog collaborator is
// disabled.
type NopPlayLogger struct{}

func (NopPlayLogger) RecordPlay(context.Context, PlayRecord) error { return nil }

var (
	_ Bridge     = NopBridge{}
	_ PlayLogger = NopPlayLogger{}
)
