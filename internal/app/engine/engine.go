package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/aveline/playhead/internal/app/device"
	"github.com/aveline/playhead/internal/app/mediabus"
	"github.com/aveline/playhead/internal/app/telemetry"
	"github.com/aveline/playhead/internal/domain/queue"
	"github.com/aveline/playhead/internal/domain/session"
	"github.com/aveline/playhead/internal/domain/track"
)

// participantID identifies the engine on the media arbitration bus.
const participantID = "audio-engine"

// Config holds engine configuration.
type Config struct {
	SeekDebounce    time.Duration // Settle window for seek bursts
	LegacyThreshold time.Duration // Upper bound for the in-progress play record gate
	InitialVolume   float64       // Volume at startup, in [0,1]
	FinalizeTimeout time.Duration // Budget for awaited tracking finalization
}

func (c *Config) applyDefaults() {
	if c.SeekDebounce <= 0 {
		c.SeekDebounce = 150 * time.Millisecond
	}
	if c.LegacyThreshold <= 0 {
		c.LegacyThreshold = 30 * time.Second
	}
	if c.InitialVolume <= 0 || c.InitialVolume > 1 {
		c.InitialVolume = 1
	}
	if c.FinalizeTimeout <= 0 {
		c.FinalizeTimeout = 5 * time.Second
	}
}

// Engine coordinates the queue, the playback device, tracking and the media
// bus. All mutation goes through its methods; there is exactly one engine per
// server and it owns the device outright.
type Engine struct {
	mu sync.Mutex

	dev     device.Interface
	queue   *queue.Queue
	bridge  telemetry.Bridge
	playlog telemetry.PlayLogger
	bus     *mediabus.Bus

	// sessionID spans the engine's lifetime; individual track-plays get
	// their own session entity carrying it.
	sessionID string
	session   *session.Session

	position time.Duration
	duration time.Duration
	playing  bool
	volume   float64
	muted    bool
	repeat   RepeatMode

	seekTimer            *time.Timer
	wasPlayingBeforeSeek bool

	config Config

	eventCh chan Event
	closed  bool

	unsubscribePause func()
}

// New creates the engine, wires it as the device listener and subscribes it
// to pause-audio signals.
func New(dev device.Interface, bridge telemetry.Bridge, playlog telemetry.PlayLogger, bus *mediabus.Bus, config Config) *Engine {
	config.applyDefaults()

	e := &Engine{
		dev:       dev,
		queue:     queue.New(),
		bridge:    bridge,
		playlog:   playlog,
		bus:       bus,
		sessionID: uuid.New().String(),
		volume:    config.InitialVolume,
		repeat:    RepeatOff,
		config:    config,
		eventCh:   make(chan Event, 16),
	}

	dev.SetListener(e)
	dev.SetVolume(e.volume)

	e.unsubscribePause = bus.Subscribe(mediabus.TopicPauseAudio, participantID, func() {
		e.Pause()
	})

	return e
}

// Events returns the event channel. Events may be dropped under backpressure;
// each one carries a full snapshot, so consumers only ever need the latest.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// PlayTrack binds a track and starts it. With a non-nil listing the queue is
// replaced by the listing with the track pinned; otherwise the track is
// inserted right after the current one.
func (e *Engine) PlayTrack(t track.Track, listing []track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if listing != nil {
		e.queue.Replace(listing, t.ID)
	} else {
		e.queue.InsertAfterCurrent(t)
	}
	e.bindLocked()
	e.emitLocked(Event{Type: EventQueueChanged, State: e.snapshotLocked()})
}

// PlayIndex binds the queue entry at the given display index.
func (e *Engine) PlayIndex(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue.MoveTo(index) == nil {
		return
	}
	e.bindLocked()
}

// AddToQueue appends a track without touching the current one.
func (e *Engine) AddToQueue(t track.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue.Append(t)
	e.emitLocked(Event{Type: EventQueueChanged, State: e.snapshotLocked()})
}

// TogglePlay flips between playing and paused. On a bound but never started
// track it behaves like Play.
func (e *Engine) TogglePlay() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.playing {
		e.dev.Pause()
		return
	}
	e.playLocked()
}

// Play starts or resumes playback.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.playing {
		return
	}
	e.playLocked()
}

// Pause pauses playback. Safe to call from bus handlers.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing {
		return
	}
	e.dev.Pause()
}

func (e *Engine) playLocked() {
	cur := e.queue.Current()
	if cur == nil {
		return
	}

	// No open session means the bound track was torn down (queue end with
	// repeat off, or a fresh queue); restart it from the top.
	if e.session == nil {
		e.bindLocked()
		return
	}

	e.bus.Publish(mediabus.TopicYieldVideo, participantID)
	e.dev.Play()
}

// Next advances to the following track. At the end of the queue it wraps only
// under repeat-all; otherwise it is a no-op.
func (e *Engine) Next() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.queue.HasNext():
		e.queue.MoveTo(e.queue.CurrentIndex() + 1)
	case e.repeat == RepeatAll && e.queue.Len() > 0:
		e.queue.MoveTo(0)
	default:
		return
	}
	e.bindLocked()
}

// Previous steps back one track, or restarts the current track when already
// at the first position.
func (e *Engine) Previous() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if idx := e.queue.CurrentIndex(); idx > 0 {
		e.queue.MoveTo(idx - 1)
	} else if e.queue.Current() == nil {
		return
	}
	e.bindLocked()
}

// Seek moves the playhead. Rapid calls are debounced: the device pauses on
// the first seek of a burst and resumes once no further seek arrives within
// the settle window, and only if it was playing when the burst began.
func (e *Engine) Seek(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.queue.Current() == nil {
		return
	}

	if e.seekTimer == nil && e.playing {
		e.wasPlayingBeforeSeek = true
		e.dev.Pause()
	}

	if pos < 0 {
		pos = 0
	}
	if e.duration > 0 && pos > e.duration {
		pos = e.duration
	}
	e.position = pos
	e.dev.SetPosition(pos)

	if e.seekTimer != nil {
		e.seekTimer.Stop()
	}
	e.seekTimer = time.AfterFunc(e.config.SeekDebounce, e.onSeekSettled)
}

func (e *Engine) onSeekSettled() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seekTimer = nil
	if !e.wasPlayingBeforeSeek {
		return
	}
	e.wasPlayingBeforeSeek = false
	e.bus.Publish(mediabus.TopicYieldVideo, participantID)
	e.dev.Play()
}

func (e *Engine) cancelSeekLocked() {
	if e.seekTimer != nil {
		e.seekTimer.Stop()
		e.seekTimer = nil
	}
	e.wasPlayingBeforeSeek = false
}

// SetVolume sets the volume, clamped to [0,1]. A positive volume unmutes.
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.volume = v
	if v > 0 {
		e.muted = false
	}
	e.dev.SetVolume(v)
	e.emitLocked(Event{Type: EventStateChanged, State: e.snapshotLocked()})
}

// ToggleMute silences or restores output. The stored volume is untouched, so
// unmuting restores the pre-mute level.
func (e *Engine) ToggleMute() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.muted {
		e.muted = false
		e.dev.SetVolume(e.volume)
	} else {
		e.muted = true
		e.dev.SetVolume(0)
	}
	e.emitLocked(Event{Type: EventStateChanged, State: e.snapshotLocked()})
}

// ToggleShuffle flips shuffle mode. Enabling reshuffles with the current
// track pinned first; disabling restores the original order with the playing
// track kept current.
func (e *Engine) ToggleShuffle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue.SetShuffle(!e.queue.Shuffled())
	e.emitLocked(Event{Type: EventQueueChanged, State: e.snapshotLocked()})
}

// SetRepeat sets the repeat mode.
func (e *Engine) SetRepeat(m RepeatMode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.repeat = m
	e.emitLocked(Event{Type: EventStateChanged, State: e.snapshotLocked()})
}

// CycleRepeat advances the repeat mode through off, all, one.
func (e *Engine) CycleRepeat() RepeatMode {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.repeat = e.repeat.Next()
	e.emitLocked(Event{Type: EventStateChanged, State: e.snapshotLocked()})
	return e.repeat
}

// ClearQueue stops playback, finalizes tracking and empties the queue.
func (e *Engine) ClearQueue() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelSeekLocked()
	e.dev.Pause()
	e.finalizeLocked()
	e.bridge.ResetTracking()
	e.queue.Clear()
	e.playing = false
	e.position = 0
	e.duration = 0
	e.emitLocked(Event{Type: EventQueueChanged, State: e.snapshotLocked()})
}

// ClosePlayer tears the playback session down on the user's behalf: one
// awaited finalize, then the queue empties and playback state returns to
// defaults. Volume and mute survive; the engine stays usable.
func (e *Engine) ClosePlayer() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelSeekLocked()
	e.dev.Pause()
	e.finalizeLocked()
	e.bridge.ResetTracking()
	e.queue.Clear()
	e.queue.SetShuffle(false)
	e.playing = false
	e.position = 0
	e.duration = 0
	e.repeat = RepeatOff
	e.emitLocked(Event{Type: EventQueueChanged, State: e.snapshotLocked()})
}

// Close tears the engine down: finalizes the open session, unsubscribes from
// the bus and closes the event channel. Idempotent; device callbacks arriving
// after Close are absorbed silently.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true

	e.cancelSeekLocked()
	if e.playing {
		e.dev.Pause()
	}
	e.finalizeLocked()
	e.bridge.ResetTracking()
	e.playing = false

	if e.unsubscribePause != nil {
		e.unsubscribePause()
		e.unsubscribePause = nil
	}

	e.mu.Unlock()

	// The closed flag is set under the same lock emitLocked runs under, so
	// no send can race this close.
	close(e.eventCh)
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	var cur *track.Track
	if c := e.queue.Current(); c != nil {
		t := *c
		cur = &t
	}
	return Snapshot{
		Current:   cur,
		Queue:     e.queue.Tracks(),
		Index:     e.queue.CurrentIndex(),
		Playing:   e.playing,
		Position:  e.position,
		Duration:  e.duration,
		Volume:    e.volume,
		Muted:     e.muted,
		Shuffled:  e.queue.Shuffled(),
		Repeat:    e.repeat,
		SessionID: e.sessionID,
		Tracking:  e.bridge.Snapshot(),
	}
}

// bindLocked tears down the previous track-play and starts the queue's
// current track. Finalization of the old session always completes before the
// new one opens.
func (e *Engine) bindLocked() {
	cur := e.queue.Current()
	if cur == nil {
		return
	}

	e.cancelSeekLocked()
	e.finalizeLocked()

	e.session = session.New(e.sessionID, cur.ID)
	e.position = 0
	e.duration = cur.Duration

	e.bridge.StartTracking(cur.ID, cur.ContentType, cur.Duration)

	e.dev.Load(cur.Source)
	e.bus.Publish(mediabus.TopicYieldVideo, participantID)
	e.dev.Play()

	e.emitLocked(Event{Type: EventTrackChanged, State: e.snapshotLocked()})
}

// finalizeLocked submits the open tracking cycle. Failures are logged and
// never block the next track; unreported credit beats a stuck player.
func (e *Engine) finalizeLocked() {
	if e.session == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.config.FinalizeTimeout)
	defer cancel()

	if err := e.bridge.FinalizeTracking(ctx); err != nil {
		zlog.Warn().Err(err).Str("track_id", e.session.TrackID).Msg("engine: tracking finalize failed")
	}
	e.session = nil
}

// recordPlayAsync writes a legacy play record without holding up playback.
func (e *Engine) recordPlayAsync(rec telemetry.PlayRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.config.FinalizeTimeout)
		defer cancel()

		if err := e.playlog.RecordPlay(ctx, rec); err != nil {
			zlog.Warn().Err(err).Str("track_id", rec.TrackID).Msg("engine: play record failed")
		}
	}()
}

// legacyThresholdLocked returns the in-progress record gate for the current
// track: 30 seconds, or half the duration for short tracks.
func (e *Engine) legacyThresholdLocked() time.Duration {
	threshold := e.config.LegacyThreshold
	if half := e.duration / 2; half < threshold {
		threshold = half
	}
	return threshold
}

// Device listener. The device confirms commands asynchronously; the engine's
// playing flag follows these callbacks only.

func (e *Engine) OnTimeUpdate(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.position = pos
	e.bridge.UpdatePlayTime(pos, e.playing)

	if e.session != nil && e.duration > 0 && pos >= e.legacyThresholdLocked() && e.session.MarkLegacyRecorded() {
		e.recordPlayAsync(telemetry.PlayRecord{
			TrackID:        e.session.TrackID,
			DurationPlayed: int(pos.Seconds()),
			Completed:      false,
			SessionID:      e.sessionID,
		})
	}

	e.emitLocked(Event{Type: EventProgress, State: e.snapshotLocked()})
}

func (e *Engine) OnDurationChange(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.duration = d
	e.emitLocked(Event{Type: EventStateChanged, State: e.snapshotLocked()})
}

func (e *Engine) OnPlay() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.playing = true
	e.bridge.UpdatePlayTime(e.position, true)
	e.emitLocked(Event{Type: EventStateChanged, State: e.snapshotLocked()})
}

func (e *Engine) OnPause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.playing = false
	e.bridge.UpdatePlayTime(e.position, false)
	e.emitLocked(Event{Type: EventStateChanged, State: e.snapshotLocked()})
}

func (e *Engine) OnEnded() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.queue.Current()
	if cur == nil || e.session == nil {
		return
	}

	endedID := e.session.TrackID
	e.finalizeLocked()

	// Natural completion always gets a play record, threshold or not.
	e.recordPlayAsync(telemetry.PlayRecord{
		TrackID:        endedID,
		DurationPlayed: int(e.duration.Seconds()),
		Completed:      true,
		SessionID:      e.sessionID,
	})

	switch {
	case e.repeat == RepeatOne:
		e.session = session.New(e.sessionID, cur.ID)
		e.position = 0
		e.bridge.StartTracking(cur.ID, cur.ContentType, cur.Duration)
		e.dev.SetPosition(0)
		e.bus.Publish(mediabus.TopicYieldVideo, participantID)
		e.dev.Play()
		e.emitLocked(Event{Type: EventTrackChanged, State: e.snapshotLocked()})

	case e.queue.HasNext():
		e.queue.MoveTo(e.queue.CurrentIndex() + 1)
		e.bindLocked()

	case e.repeat == RepeatAll && e.queue.Len() > 0:
		e.queue.MoveTo(0)
		e.bindLocked()

	default:
		// End of queue with repeat off: stay bound to the last track but
		// drop the session so a later play restarts it cleanly.
		e.playing = false
		e.bridge.ResetTracking()
		e.emitLocked(Event{Type: EventStateChanged, State: e.snapshotLocked()})
	}
}

func (e *Engine) OnPlayError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	zlog.Warn().Err(err).Msg("engine: device rejected play")
	e.playing = false
	e.emitLocked(Event{Type: EventPlaybackError, State: e.snapshotLocked(), Err: err})
}

var _ device.Listener = (*Engine)(nil)

// emitLocked sends an event without blocking.
// Must be called with lock held.
func (e *Engine) emitLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.eventCh <- ev:
	default:
	}
}
