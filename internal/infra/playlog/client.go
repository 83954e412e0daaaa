// Package playlog writes play records to the legacy play-count service.
package playlog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/aveline/playhead/internal/app/telemetry"
)

// Config represents playlog client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a playlog service client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// apiError is the service's error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// New creates a new playlog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("playlog base URL is required")
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

// RecordPlay writes one play record.
func (c *Client) RecordPlay(ctx context.Context, rec telemetry.PlayRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal play record")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/plays", bytes.NewReader(payload))
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
			return errors.Newf("playlog API error %d: %s", apiErr.Code, apiErr.Message)
		}
		return errors.Newf("playlog API returned status %d", resp.StatusCode)
	}

	zlog.Debug().Str("track_id", rec.TrackID).Bool("completed", rec.Completed).Msg("playlog: play recorded")
	return nil
}

var _ telemetry.PlayLogger = (*Client)(nil)
