package dataapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newAdapterServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/audio", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("song") == "missing" {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"song":"Hello","artist":"Adele","audio_url":"/files/hello.mp3"}`))
	})
	mux.HandleFunc("/stream_pcm", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"song":"Hello","artist":"Adele","audio_url":"https://cdn.example.com/hello.pcm","lyric_url":"lyrics/hello.txt"}`))
	})
	mux.HandleFunc("/lyrics/hello.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello, it's me"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, testClient(t, srv.URL)
}

func TestAdapterStatusConnected(t *testing.T) {
	_, c := newAdapterServer(t)

	health, err := c.AdapterStatus(context.Background())
	if err != nil {
		t.Fatalf("adapter status: %v", err)
	}
	if health.Status != "connected" {
		t.Fatalf("expected connected, got %q", health.Status)
	}
}

func TestAdapterStatusUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := testClient(t, srv.URL)
	srv.Close()

	health, err := c.AdapterStatus(context.Background())
	if err == nil {
		t.Fatal("expected an error from a closed adapter")
	}
	if health == nil || health.Status != "disconnected" {
		t.Fatalf("health must still report the configured URL, got %+v", health)
	}
	if health.AdapterURL != strings.TrimRight(srv.URL, "/") {
		t.Fatalf("unexpected adapter URL %q", health.AdapterURL)
	}
}

func TestAdapterStatusUnconfigured(t *testing.T) {
	c := testClient(t, "")

	health, err := c.AdapterStatus(context.Background())
	if err == nil {
		t.Fatal("expected an error when no adapter URL is set")
	}
	if health.Status != "disconnected" {
		t.Fatalf("unexpected status %q", health.Status)
	}
}

func TestSearchMusicResolvesRelativeURL(t *testing.T) {
	srv, c := newAdapterServer(t)

	result, err := c.SearchMusic(context.Background(), "Hello", "Adele")
	if err != nil {
		t.Fatalf("search music: %v", err)
	}
	if result.AudioURL != srv.URL+"/files/hello.mp3" {
		t.Fatalf("relative audio URL not resolved, got %q", result.AudioURL)
	}
	if result.Song != "Hello" || result.Artist != "Adele" {
		t.Fatalf("query must be echoed back, got %+v", result)
	}
}

func TestSearchMusicNoResult(t *testing.T) {
	_, c := newAdapterServer(t)

	_, err := c.SearchMusic(context.Background(), "missing", "")
	assertUpstreamError(t, err)
}

func TestMusicStreamKeepsAbsoluteURL(t *testing.T) {
	srv, c := newAdapterServer(t)

	result, err := c.MusicStream(context.Background(), "Hello", "")
	if err != nil {
		t.Fatalf("music stream: %v", err)
	}
	if result.AudioURL != "https://cdn.example.com/hello.pcm" {
		t.Fatalf("absolute audio URL must pass through, got %q", result.AudioURL)
	}
	if result.LyricURL != srv.URL+"/lyrics/hello.txt" {
		t.Fatalf("lyric URL not resolved, got %q", result.LyricURL)
	}
}

func TestLyricsFetchesLyricBody(t *testing.T) {
	_, c := newAdapterServer(t)

	result, err := c.Lyrics(context.Background(), "Hello", "Adele")
	if err != nil {
		t.Fatalf("lyrics: %v", err)
	}
	if result.Lyrics != "Hello, it's me" {
		t.Fatalf("unexpected lyrics %q", result.Lyrics)
	}
}

func TestQueryAdapterUnconfigured(t *testing.T) {
	c := testClient(t, "")

	_, err := c.SearchMusic(context.Background(), "Hello", "")
	assertUpstreamError(t, err)
}
