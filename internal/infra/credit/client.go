// Package credit reports listened time to the credit service.
//
// The client implements telemetry.Bridge: it accumulates listened time from
// playhead progress reports and submits one credit entry per track-play on
// finalization. Seek jumps do not count as listening; only small forward
// steps of an actually playing playhead accumulate.
package credit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/aveline/playhead/internal/app/telemetry"
)

// maxStep is the largest forward playhead delta counted as listening.
// Progress reports arrive a few times per second; anything bigger is a seek.
const maxStep = 2 * time.Second

// Config represents credit client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a credit service client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	mu          sync.Mutex
	active      bool
	trackID     string
	contentType string
	duration    time.Duration
	position    time.Duration
	playing     bool
	listened    time.Duration
}

// creditEntry is the submit payload.
type creditEntry struct {
	TrackID     string `json:"trackId"`
	ContentType string `json:"contentType"`
	DurationSec int    `json:"durationSec"`
	ListenedSec int    `json:"listenedSec"`
}

// apiError is the service's error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// New creates a new credit client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("credit base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// StartTracking opens an accumulation cycle for a track. Any prior cycle is
// discarded; the engine finalizes before starting a new one.
func (c *Client) StartTracking(trackID, contentType string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = true
	c.trackID = trackID
	c.contentType = contentType
	c.duration = duration
	c.position = 0
	c.playing = false
	c.listened = 0
}

// UpdatePlayTime accumulates listened time from playhead progress.
func (c *Client) UpdatePlayTime(position time.Duration, playing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}

	if c.playing && position > c.position {
		if delta := position - c.position; delta <= maxStep {
			c.listened += delta
		}
	}
	c.position = position
	c.playing = playing
}

// FinalizeTracking submits the accumulated time and closes the cycle. The
// cycle is closed even when the submit fails; the engine moves on either way.
func (c *Client) FinalizeTracking(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	entry := creditEntry{
		TrackID:     c.trackID,
		ContentType: c.contentType,
		DurationSec: int(c.duration.Seconds()),
		ListenedSec: int(c.listened.Seconds()),
	}
	c.resetLocked()
	c.mu.Unlock()

	if entry.ListenedSec == 0 {
		zlog.Debug().Str("track_id", entry.TrackID).Msg("credit: nothing listened, skipping submit")
		return nil
	}

	return c.submit(ctx, entry)
}

// ResetTracking discards the cycle without submitting.
func (c *Client) ResetTracking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Client) resetLocked() {
	c.active = false
	c.trackID = ""
	c.contentType = ""
	c.duration = 0
	c.position = 0
	c.playing = false
	c.listened = 0
}

// Snapshot returns the current accumulation state.
func (c *Client) Snapshot() telemetry.TrackingState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return telemetry.TrackingState{
		TrackID:     c.trackID,
		ContentType: c.contentType,
		Duration:    c.duration,
		Position:    c.position,
		Playing:     c.playing,
		Active:      c.active,
	}
}

func (c *Client) submit(ctx context.Context, entry creditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal credit entry")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/credits", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return errors.Newf("credit API error %d: %s", apiErr.Code, apiErr.Message)
		}
		return errors.Newf("credit API returned status %d", resp.StatusCode)
	}

	zlog.Debug().Str("track_id", entry.TrackID).Int("listened_sec", entry.ListenedSec).Msg("credit: entry submitted")
	return nil
}

var _ telemetry.Bridge = (*Client)(nil)
