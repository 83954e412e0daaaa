// Package catalog resolves track and collection metadata from the platform
// catalog service. Playback commands arrive carrying IDs only; the engine
// needs full tracks with audio locators before it can bind anything.
package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/aveline/playhead/internal/domain/track"
)

// Config represents catalog client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a catalog service client with a per-track metadata cache.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	cacheMu    sync.RWMutex
	trackCache map[string]track.Track
}

// trackDTO is the wire representation of a track.
type trackDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	ArtworkURL  string `json:"artworkUrl"`
	AudioURL    string `json:"audioUrl"`
	ContentType string `json:"contentType"`
	DurationMs  int    `json:"durationMs"`
}

// collectionResponse is the response of the collection tracks endpoint.
type collectionResponse struct {
	Tracks []trackDTO `json:"tracks"`
}

// apiError is the service's error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		trackCache: make(map[string]track.Track),
	}, nil
}

// GetTrack resolves a single track by ID.
func (c *Client) GetTrack(ctx context.Context, trackID string) (track.Track, error) {
	if trackID == "" {
		return track.Track{}, errors.New("track ID is required")
	}

	c.cacheMu.RLock()
	if t, ok := c.trackCache[trackID]; ok {
		c.cacheMu.RUnlock()
		return t, nil
	}
	c.cacheMu.RUnlock()

	var dto trackDTO
	if err := c.get(ctx, "/v1/tracks/"+url.PathEscape(trackID), &dto); err != nil {
		return track.Track{}, err
	}

	t := dto.toTrack()
	c.cacheMu.Lock()
	c.trackCache[trackID] = t
	c.cacheMu.Unlock()

	return t, nil
}

// GetCollectionTracks resolves the track listing of an album or playlist.
func (c *Client) GetCollectionTracks(ctx context.Context, collectionID string) ([]track.Track, error) {
	if collectionID == "" {
		return nil, errors.New("collection ID is required")
	}

	var resp collectionResponse
	if err := c.get(ctx, "/v1/collections/"+url.PathEscape(collectionID)+"/tracks", &resp); err != nil {
		return nil, err
	}

	tracks := make([]track.Track, 0, len(resp.Tracks))
	c.cacheMu.Lock()
	for _, dto := range resp.Tracks {
		t := dto.toTrack()
		c.trackCache[t.ID] = t
		tracks = append(tracks, t)
	}
	c.cacheMu.Unlock()

	zlog.Debug().Str("collection_id", collectionID).Int("count", len(tracks)).Msg("catalog: collection resolved")
	return tracks, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			return errors.Newf("catalog API error %d: %s", apiErr.Code, apiErr.Message)
		}
		return errors.Newf("catalog API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func (d trackDTO) toTrack() track.Track {
	return track.Track{
		ID:          d.ID,
		Title:       d.Title,
		Artist:      d.Artist,
		Album:       d.Album,
		ArtworkURL:  d.ArtworkURL,
		Source:      d.AudioURL,
		ContentType: d.ContentType,
		Duration:    time.Duration(d.DurationMs) * time.Millisecond,
	}
}
