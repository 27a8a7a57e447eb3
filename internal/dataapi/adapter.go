package dataapi

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/monpham/mcp-homecast/internal/domain"
)

type adapterStreamResponse struct {
	Song     string `json:"song"`
	Artist   string `json:"artist"`
	AudioURL string `json:"audio_url"`
	LyricURL string `json:"lyric_url"`
}

// AdapterStatus probes the music adapter's health endpoint. The returned
// report is non-nil even on failure so callers can echo the configured URL.
func (c *Client) AdapterStatus(ctx context.Context) (*domain.AdapterHealth, error) {
	health := &domain.AdapterHealth{AdapterURL: c.adapterURL, Status: "disconnected"}
	if c.adapterURL == "" {
		return health, errors.New("adapter URL is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if _, err := c.getBody(ctx, c.adapter, c.adapterURL+"/health", nil); err != nil {
		return health, err
	}
	health.Status = "connected"
	return health, nil
}

// SearchMusic resolves a song query to a directly playable audio URL.
func (c *Client) SearchMusic(ctx context.Context, song, artist string) (*domain.MusicResult, error) {
	payload, err := c.queryAdapter(ctx, "/audio", song, artist)
	if err != nil {
		return nil, err
	}
	if payload.AudioURL == "" {
		return nil, upstreamError("music search", errors.New("no audio found for query"))
	}

	return &domain.MusicResult{
		Song:     song,
		Artist:   artist,
		AudioURL: c.absoluteAdapterURL(payload.AudioURL),
	}, nil
}

// MusicStream resolves a song query to streaming and lyric URLs.
func (c *Client) MusicStream(ctx context.Context, song, artist string) (*domain.MusicResult, error) {
	payload, err := c.queryAdapter(ctx, "/stream_pcm", song, artist)
	if err != nil {
		return nil, err
	}
	if payload.AudioURL == "" {
		return nil, upstreamError("music stream", errors.New("no stream found for query"))
	}

	return &domain.MusicResult{
		Song:     song,
		Artist:   artist,
		AudioURL: c.absoluteAdapterURL(payload.AudioURL),
		LyricURL: c.absoluteAdapterURL(payload.LyricURL),
	}, nil
}

// Lyrics resolves a song query and fetches its lyric text.
func (c *Client) Lyrics(ctx context.Context, song, artist string) (*domain.LyricsResult, error) {
	payload, err := c.queryAdapter(ctx, "/stream_pcm", song, artist)
	if err != nil {
		return nil, err
	}
	if payload.LyricURL == "" {
		return nil, upstreamError("lyrics", errors.New("no lyrics found for query"))
	}

	body, err := c.getBody(ctx, c.adapter, c.absoluteAdapterURL(payload.LyricURL), nil)
	if err != nil {
		return nil, upstreamError("lyrics", err)
	}

	return &domain.LyricsResult{
		Song:   song,
		Artist: artist,
		Lyrics: string(body),
	}, nil
}

func (c *Client) queryAdapter(ctx context.Context, path, song, artist string) (*adapterStreamResponse, error) {
	if c.adapterURL == "" {
		return nil, upstreamError("music adapter", errors.New("adapter URL is not configured"))
	}

	params := url.Values{}
	params.Set("song", song)
	if artist != "" {
		params.Set("artist", artist)
	}

	var payload adapterStreamResponse
	if err := c.getJSON(ctx, c.adapter, c.adapterURL+path, params, &payload); err != nil {
		return nil, upstreamError("music adapter", err)
	}
	return &payload, nil
}

func (c *Client) absoluteAdapterURL(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.adapterURL + ref
}
