package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aveline/playhead/internal/app/device"
	"github.com/aveline/playhead/internal/app/mediabus"
	"github.com/aveline/playhead/internal/app/telemetry"
	"github.com/aveline/playhead/internal/domain/track"
)

type fakeBridge struct {
	mu          sync.Mutex
	ops         []string
	state       telemetry.TrackingState
	finalizeErr error
}

func (b *fakeBridge) StartTracking(trackID, contentType string, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, "start:"+trackID)
	b.state = telemetry.TrackingState{
		TrackID:     trackID,
		ContentType: contentType,
		Duration:    duration,
		Active:      true,
	}
}

func (b *fakeBridge) UpdatePlayTime(position time.Duration, playing bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Position = position
	b.state.Playing = playing
}

func (b *fakeBridge) FinalizeTracking(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, "finalize")
	b.state = telemetry.TrackingState{}
	return b.finalizeErr
}

func (b *fakeBridge) ResetTracking() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, "reset")
	b.state = telemetry.TrackingState{}
}

func (b *fakeBridge) Snapshot() telemetry.TrackingState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *fakeBridge) Ops() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.ops))
	copy(out, b.ops)
	return out
}

type fakePlaylog struct {
	mu   sync.Mutex
	recs []telemetry.PlayRecord
}

func (p *fakePlaylog) RecordPlay(_ context.Context, rec telemetry.PlayRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recs = append(p.recs, rec)
	return nil
}

func (p *fakePlaylog) Records() []telemetry.PlayRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]telemetry.PlayRecord, len(p.recs))
	copy(out, p.recs)
	return out
}

func makeTrack(id string, d time.Duration) track.Track {
	return track.Track{
		ID:          id,
		Title:       "Track " + id,
		Source:      "https://cdn.example/" + id + ".m4a",
		ContentType: "song",
		Duration:    d,
	}
}

type testRig struct {
	engine  *Engine
	dev     *device.Mock
	bridge  *fakeBridge
	playlog *fakePlaylog
	bus     *mediabus.Bus
}

func newTestRig(t *testing.T, cfg Config) *testRig {
	t.Helper()
	r := &testRig{
		dev:     device.NewMock(),
		bridge:  &fakeBridge{},
		playlog: &fakePlaylog{},
		bus:     mediabus.New(),
	}
	r.engine = New(r.dev, r.bridge, r.playlog, r.bus, cfg)
	t.Cleanup(r.engine.Close)
	return r
}

// startPlaying binds the listing and confirms the play so the engine sees
// itself as playing, the way a real device would.
func (r *testRig) startPlaying(current track.Track, listing []track.Track) {
	r.engine.PlayTrack(current, listing)
	r.dev.EmitPlay()
}

func TestEngine_PlayTrackWithListing(t *testing.T) {
	r := newTestRig(t, Config{})
	a, b := makeTrack("a", 3*time.Minute), makeTrack("b", 3*time.Minute)

	r.engine.PlayTrack(a, []track.Track{a, b})

	assert.Equal(t, []string{"set_volume", "load", "play"}, r.dev.CallNames())
	assert.Equal(t, a.Source, r.dev.LastCall("load").Source)
	assert.Equal(t, []string{"start:a"}, r.bridge.Ops())

	snap := r.engine.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "a", snap.Current.ID)
	assert.False(t, snap.Playing, "playing must wait for device confirmation")

	r.dev.EmitPlay()
	assert.True(t, r.engine.Snapshot().Playing)
}

func TestEngine_FinalizeBeforeStart(t *testing.T) {
	r := newTestRig(t, Config{})
	a, b := makeTrack("a", 3*time.Minute), makeTrack("b", 3*time.Minute)

	r.engine.PlayTrack(a, []track.Track{a, b})
	r.engine.Next()

	assert.Equal(t, []string{"start:a", "finalize", "start:b"}, r.bridge.Ops())
}

func TestEngine_FinalizeFailureDoesNotBlockNextTrack(t *testing.T) {
	r := newTestRig(t, Config{})
	r.bridge.finalizeErr = errors.New("credit service down")
	a, b := makeTrack("a", 3*time.Minute), makeTrack("b", 3*time.Minute)

	r.engine.PlayTrack(a, []track.Track{a, b})
	r.engine.Next()

	assert.Equal(t, []string{"start:a", "finalize", "start:b"}, r.bridge.Ops())
	assert.Equal(t, "b", r.engine.Snapshot().Current.ID)
}

func TestEngine_TrackEndAdvances(t *testing.T) {
	r := newTestRig(t, Config{})
	a, b := makeTrack("a", 3*time.Minute), makeTrack("b", 3*time.Minute)
	r.startPlaying(a, []track.Track{a, b})

	r.dev.EmitEnded()

	assert.Equal(t, "b", r.engine.Snapshot().Current.ID)
	assert.Equal(t, b.Source, r.dev.LastCall("load").Source)
}

func TestEngine_TrackEndAtLastWithRepeatOff(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", 3*time.Minute)
	r.startPlaying(a, []track.Track{a})

	r.dev.EmitEnded()

	snap := r.engine.Snapshot()
	require.NotNil(t, snap.Current, "track stays bound after the queue ends")
	assert.Equal(t, "a", snap.Current.ID)
	assert.False(t, snap.Playing)
	assert.Contains(t, r.bridge.Ops(), "reset")

	// Playing again restarts the track with a fresh session.
	loads := r.dev.CountCalls("load")
	r.engine.Play()
	assert.Equal(t, loads+1, r.dev.CountCalls("load"))
	assert.Equal(t, []string{"start:a", "finalize", "reset", "start:a"}, r.bridge.Ops())
}

func TestEngine_RepeatAllWrapsToFirst(t *testing.T) {
	r := newTestRig(t, Config{})
	a, b, c := makeTrack("a", time.Minute), makeTrack("b", time.Minute), makeTrack("c", time.Minute)
	r.startPlaying(a, []track.Track{a, b, c})

	r.engine.Next()
	r.engine.Next()
	assert.Equal(t, "c", r.engine.Snapshot().Current.ID)

	// At the last track with repeat off, Next is a no-op.
	r.engine.Next()
	assert.Equal(t, "c", r.engine.Snapshot().Current.ID)

	r.engine.SetRepeat(RepeatAll)
	r.engine.Next()
	assert.Equal(t, "a", r.engine.Snapshot().Current.ID)
}

func TestEngine_RepeatOneReplaysWithoutReload(t *testing.T) {
	r := newTestRig(t, Config{})
	a, b := makeTrack("a", time.Minute), makeTrack("b", time.Minute)
	r.startPlaying(a, []track.Track{a, b})
	r.engine.SetRepeat(RepeatOne)

	loads := r.dev.CountCalls("load")
	r.dev.EmitEnded()

	assert.Equal(t, "a", r.engine.Snapshot().Current.ID)
	assert.Equal(t, loads, r.dev.CountCalls("load"), "repeat-one rewinds, never reloads")
	assert.Equal(t, time.Duration(0), r.dev.LastCall("set_position").Pos)
	assert.Equal(t, []string{"start:a", "finalize", "start:a"}, r.bridge.Ops())
}

func TestEngine_RepeatModeCycle(t *testing.T) {
	r := newTestRig(t, Config{})

	assert.Equal(t, RepeatAll, r.engine.CycleRepeat())
	assert.Equal(t, RepeatOne, r.engine.CycleRepeat())
	assert.Equal(t, RepeatOff, r.engine.CycleRepeat())
}

func TestEngine_PreviousAtFirstRestartsTrack(t *testing.T) {
	r := newTestRig(t, Config{})
	a, b := makeTrack("a", time.Minute), makeTrack("b", time.Minute)
	r.startPlaying(a, []track.Track{a, b})

	loads := r.dev.CountCalls("load")
	r.engine.Previous()

	assert.Equal(t, "a", r.engine.Snapshot().Current.ID)
	assert.Equal(t, loads+1, r.dev.CountCalls("load"))
	assert.Equal(t, []string{"start:a", "finalize", "start:a"}, r.bridge.Ops())
}

func TestEngine_SeekDebounce(t *testing.T) {
	r := newTestRig(t, Config{SeekDebounce: 30 * time.Millisecond})
	a := makeTrack("a", 3*time.Minute)
	r.startPlaying(a, []track.Track{a})

	pauses := r.dev.CountCalls("pause")
	plays := r.dev.CountCalls("play")

	r.engine.Seek(10 * time.Second)
	r.engine.Seek(20 * time.Second)
	r.engine.Seek(30 * time.Second)

	assert.Equal(t, pauses+1, r.dev.CountCalls("pause"), "one pause per burst")
	assert.Equal(t, plays, r.dev.CountCalls("play"), "no resume before the burst settles")
	assert.Equal(t, 3, r.dev.CountCalls("set_position"), "every seek repositions")
	assert.Equal(t, 30*time.Second, r.dev.LastCall("set_position").Pos)

	require.Eventually(t, func() bool {
		return r.dev.CountCalls("play") == plays+1
	}, time.Second, 5*time.Millisecond, "one resume after the burst settles")

	assert.Equal(t, 30*time.Second, r.engine.Snapshot().Position)
}

func TestEngine_SeekWhilePausedDoesNotResume(t *testing.T) {
	r := newTestRig(t, Config{SeekDebounce: 20 * time.Millisecond})
	a := makeTrack("a", 3*time.Minute)
	r.engine.PlayTrack(a, []track.Track{a})
	// Never confirmed playing, so the engine is paused.

	pauses := r.dev.CountCalls("pause")
	plays := r.dev.CountCalls("play")

	r.engine.Seek(10 * time.Second)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, pauses, r.dev.CountCalls("pause"))
	assert.Equal(t, plays, r.dev.CountCalls("play"))
	assert.Equal(t, 10*time.Second, r.engine.Snapshot().Position)
}

func TestEngine_SeekClampsToTrackBounds(t *testing.T) {
	r := newTestRig(t, Config{SeekDebounce: 20 * time.Millisecond})
	a := makeTrack("a", time.Minute)
	r.engine.PlayTrack(a, []track.Track{a})

	r.engine.Seek(-5 * time.Second)
	assert.Equal(t, time.Duration(0), r.dev.LastCall("set_position").Pos)

	r.engine.Seek(2 * time.Minute)
	assert.Equal(t, time.Minute, r.dev.LastCall("set_position").Pos)
}

func TestEngine_NewTrackCancelsPendingSeekResume(t *testing.T) {
	r := newTestRig(t, Config{SeekDebounce: 50 * time.Millisecond})
	a, b := makeTrack("a", time.Minute), makeTrack("b", time.Minute)
	r.startPlaying(a, []track.Track{a, b})

	r.engine.Seek(10 * time.Second)
	r.engine.Next()

	plays := r.dev.CountCalls("play")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, plays, r.dev.CountCalls("play"), "stale debounce must not fire after a bind")
}

func TestEngine_LegacyPlayThreshold(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", 100*time.Second)
	r.startPlaying(a, []track.Track{a})

	r.dev.EmitTimeUpdate(29 * time.Second)
	assert.Empty(t, r.playlog.Records())

	r.dev.EmitTimeUpdate(30 * time.Second)
	require.Eventually(t, func() bool {
		return len(r.playlog.Records()) == 1
	}, time.Second, 5*time.Millisecond)

	rec := r.playlog.Records()[0]
	assert.Equal(t, "a", rec.TrackID)
	assert.Equal(t, 30, rec.DurationPlayed)
	assert.False(t, rec.Completed)

	// The gate is one-shot per track-play.
	r.dev.EmitTimeUpdate(40 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, r.playlog.Records(), 1)
}

func TestEngine_LegacyPlayThresholdShortTrack(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", 20*time.Second)
	r.startPlaying(a, []track.Track{a})

	// Half of 20s beats the 30s cap.
	r.dev.EmitTimeUpdate(9 * time.Second)
	assert.Empty(t, r.playlog.Records())

	r.dev.EmitTimeUpdate(10 * time.Second)
	require.Eventually(t, func() bool {
		return len(r.playlog.Records()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_TrackEndRecordsUnconditionally(t *testing.T) {
	r := newTestRig(t, Config{})
	a, b := makeTrack("a", 10*time.Second), makeTrack("b", time.Minute)
	r.startPlaying(a, []track.Track{a, b})

	// Ends before ever crossing the in-progress threshold.
	r.dev.EmitEnded()

	require.Eventually(t, func() bool {
		return len(r.playlog.Records()) == 1
	}, time.Second, 5*time.Millisecond)

	rec := r.playlog.Records()[0]
	assert.Equal(t, "a", rec.TrackID)
	assert.Equal(t, 10, rec.DurationPlayed)
	assert.True(t, rec.Completed)
}

func TestEngine_PauseAudioSignalPausesEngine(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", time.Minute)
	r.startPlaying(a, []track.Track{a})

	pauses := r.dev.CountCalls("pause")
	r.bus.Publish(mediabus.TopicPauseAudio, "video-player-1")

	assert.Equal(t, pauses+1, r.dev.CountCalls("pause"))
}

func TestEngine_YieldVideoEmittedBeforePlay(t *testing.T) {
	r := newTestRig(t, Config{})

	var yields int
	r.bus.Subscribe(mediabus.TopicYieldVideo, "video-player-1", func() { yields++ })

	a := makeTrack("a", time.Minute)
	r.engine.PlayTrack(a, []track.Track{a})
	assert.Equal(t, 1, yields)

	r.dev.EmitPlay()
	r.dev.EmitPause()
	r.engine.Play()
	assert.Equal(t, 2, yields)
}

func TestEngine_OwnYieldDoesNotPauseEngine(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", time.Minute)
	r.startPlaying(a, []track.Track{a})

	pauses := r.dev.CountCalls("pause")
	r.engine.Play() // already playing, but exercise the publish path via resume
	r.dev.EmitPause()
	r.engine.Play()

	assert.Equal(t, pauses, r.dev.CountCalls("pause"), "the engine's own yield must not bounce back as a pause")
}

func TestEngine_VolumeClampAndMute(t *testing.T) {
	r := newTestRig(t, Config{})

	r.engine.SetVolume(1.5)
	assert.Equal(t, 1.0, r.dev.LastCall("set_volume").Volume)

	r.engine.SetVolume(0.6)
	r.engine.ToggleMute()
	assert.Equal(t, 0.0, r.dev.LastCall("set_volume").Volume)

	snap := r.engine.Snapshot()
	assert.True(t, snap.Muted)
	assert.Equal(t, 0.6, snap.Volume, "mute must not clobber the stored volume")

	r.engine.ToggleMute()
	assert.Equal(t, 0.6, r.dev.LastCall("set_volume").Volume)
	assert.False(t, r.engine.Snapshot().Muted)
}

func TestEngine_SetVolumeUnmutes(t *testing.T) {
	r := newTestRig(t, Config{})

	r.engine.ToggleMute()
	require.True(t, r.engine.Snapshot().Muted)

	r.engine.SetVolume(0.4)
	snap := r.engine.Snapshot()
	assert.False(t, snap.Muted)
	assert.Equal(t, 0.4, snap.Volume)
}

func TestEngine_PlayErrorLeavesPaused(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", time.Minute)
	r.engine.PlayTrack(a, []track.Track{a})

	r.dev.EmitPlayError(errors.New("autoplay blocked"))

	snap := r.engine.Snapshot()
	assert.False(t, snap.Playing)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "a", snap.Current.ID)
}

func TestEngine_PlayTrackWithoutListingInsertsAfterCurrent(t *testing.T) {
	r := newTestRig(t, Config{})
	a, b := makeTrack("a", time.Minute), makeTrack("b", time.Minute)
	x := makeTrack("x", time.Minute)
	r.startPlaying(a, []track.Track{a, b})

	r.engine.PlayTrack(x, nil)

	snap := r.engine.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "x", snap.Current.ID)

	ids := make([]string, len(snap.Queue))
	for i, tr := range snap.Queue {
		ids[i] = tr.ID
	}
	assert.Equal(t, []string{"a", "x", "b"}, ids)
}

func TestEngine_PlayTrackAfterAddToQueueOnEmpty(t *testing.T) {
	r := newTestRig(t, Config{})
	a, b := makeTrack("a", time.Minute), makeTrack("b", time.Minute)

	// Appending to an empty queue leaves no track selected; a later direct
	// play must still find an insertion point.
	r.engine.AddToQueue(a)
	r.engine.PlayTrack(b, nil)

	snap := r.engine.Snapshot()
	require.NotNil(t, snap.Current)
	assert.Equal(t, "b", snap.Current.ID)
	assert.Equal(t, b.Source, r.dev.LastCall("load").Source)

	ids := make([]string, len(snap.Queue))
	for i, tr := range snap.Queue {
		ids[i] = tr.ID
	}
	assert.Equal(t, []string{"b", "a"}, ids)
}

func TestEngine_ToggleShuffleAroundAppendOnEmpty(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", time.Minute)

	r.engine.ToggleShuffle()
	r.engine.AddToQueue(a)
	r.engine.ToggleShuffle()

	snap := r.engine.Snapshot()
	assert.False(t, snap.Shuffled)
	assert.Nil(t, snap.Current, "append must not select a track")
	assert.Len(t, snap.Queue, 1)
	assert.Equal(t, -1, snap.Index)
}

func TestEngine_DeviceEventAfterCloseIsDropped(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", time.Minute)
	r.startPlaying(a, []track.Track{a})

	r.engine.Close()

	// The device side can still deliver callbacks while the transport drains
	// during shutdown; they must be absorbed without emitting.
	assert.NotPanics(t, func() {
		r.dev.EmitTimeUpdate(3 * time.Second)
		r.dev.EmitPause()
		r.engine.Close()
	})
}

func TestEngine_ClearQueueStopsAndResets(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", time.Minute)
	r.startPlaying(a, []track.Track{a})

	r.engine.ClearQueue()

	snap := r.engine.Snapshot()
	assert.Nil(t, snap.Current)
	assert.Empty(t, snap.Queue)
	assert.Equal(t, []string{"start:a", "finalize", "reset"}, r.bridge.Ops())
}

func TestEngine_ClosePlayerResetsStateButKeepsVolume(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", time.Minute)
	r.startPlaying(a, []track.Track{a})
	r.engine.SetVolume(0.3)
	r.engine.SetRepeat(RepeatOne)

	r.engine.ClosePlayer()

	snap := r.engine.Snapshot()
	assert.Nil(t, snap.Current)
	assert.Empty(t, snap.Queue)
	assert.False(t, snap.Playing)
	assert.Equal(t, RepeatOff, snap.Repeat)
	assert.Equal(t, 0.3, snap.Volume, "volume is a user setting, not session state")
	assert.Equal(t, []string{"start:a", "finalize", "reset"}, r.bridge.Ops())
}

func TestEngine_SnapshotReplicatesTrackingState(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", 3*time.Minute)
	r.startPlaying(a, []track.Track{a})

	r.dev.EmitTimeUpdate(5 * time.Second)

	tr := r.engine.Snapshot().Tracking
	assert.True(t, tr.Active)
	assert.Equal(t, "a", tr.TrackID)
	assert.Equal(t, "song", tr.ContentType)
	assert.Equal(t, 5*time.Second, tr.Position)
	assert.True(t, tr.Playing)

	r.engine.ClearQueue()
	assert.False(t, r.engine.Snapshot().Tracking.Active)
}

func TestEngine_DurationChangeUpdatesSnapshot(t *testing.T) {
	r := newTestRig(t, Config{})
	a := makeTrack("a", 0) // duration unknown until metadata arrives
	r.engine.PlayTrack(a, []track.Track{a})

	r.dev.EmitDurationChange(210 * time.Second)

	assert.Equal(t, 210*time.Second, r.engine.Snapshot().Duration)
}
