package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTrack(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v1/tracks/track-1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "track-1",
			"title": "Some Song",
			"artist": "Some Artist",
			"album": "Some Album",
			"audioUrl": "https://cdn.example/track-1.m4a",
			"contentType": "song",
			"durationMs": 183000
		}`)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)

	ctx := context.Background()
	tr, err := client.GetTrack(ctx, "track-1")
	require.NoError(t, err)
	assert.Equal(t, "Some Song", tr.Title)
	assert.Equal(t, "https://cdn.example/track-1.m4a", tr.Source)
	assert.Equal(t, 183*time.Second, tr.Duration)

	// Second lookup comes from the cache.
	trCached, err := client.GetTrack(ctx, "track-1")
	require.NoError(t, err)
	assert.Equal(t, tr, trCached)
	assert.Equal(t, 1, calls)
}

func TestGetCollectionTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/collections/album-1/tracks", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"tracks": [
				{"id": "t1", "title": "One", "audioUrl": "https://cdn.example/t1.m4a", "durationMs": 60000},
				{"id": "t2", "title": "Two", "audioUrl": "https://cdn.example/t2.m4a", "durationMs": 120000}
			]
		}`)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)

	tracks, err := client.GetCollectionTracks(context.Background(), "album-1")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "One", tracks[0].Title)
	assert.Equal(t, 2*time.Minute, tracks[1].Duration)

	// Collection members land in the track cache too.
	tr, err := client.GetTrack(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "One", tr.Title)
}

func TestGetTrack_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code": 404, "message": "track not found"}`)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.GetTrack(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "track not found")
}
