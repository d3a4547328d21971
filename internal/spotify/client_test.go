package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAPI(t *testing.T, trackStatus int, trackBody string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/tracks/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(trackStatus)
		_, _ = w.Write([]byte(trackBody))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{name: "Both missing", config: Config{}},
		{name: "Secret missing", config: Config{ClientID: "id"}},
		{name: "ID missing", config: Config{ClientSecret: "secret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tt.config, nil)
			if !errors.Is(err, ErrNotConfigured) {
				t.Errorf("NewClient() error = %v, want ErrNotConfigured", err)
			}
			if client != nil {
				t.Error("NewClient() should not return a client")
			}
		})
	}
}

func TestClient_LookupTrack(t *testing.T) {
	server := newTestAPI(t, http.StatusOK, `{
		"id": "abc123",
		"name": "Song",
		"artists": [{"name": "Artist A"}, {"name": "Artist B"}],
		"album": {"name": "Album", "images": [{"url": "http://img/cover.jpg", "height": 640, "width": 640}]}
	}`)

	client, err := NewClient(context.Background(), Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     server.URL + "/api/token",
		APIURL:       server.URL + "/v1",
	}, nil)
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	meta, err := client.LookupTrack(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("LookupTrack() unexpected error: %v", err)
	}
	if meta.Title != "Song" {
		t.Errorf("Title = %q, want Song", meta.Title)
	}
	if meta.Artist != "Artist A, Artist B" {
		t.Errorf("Artist = %q, want joined artists", meta.Artist)
	}
	if meta.CoverURL != "http://img/cover.jpg" {
		t.Errorf("CoverURL = %q", meta.CoverURL)
	}
}

func TestClient_LookupTrackNotFound(t *testing.T) {
	server := newTestAPI(t, http.StatusNotFound, `{"error":{"status":404,"message":"Not found."}}`)

	client, err := NewClient(context.Background(), Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     server.URL + "/api/token",
		APIURL:       server.URL + "/v1",
	}, nil)
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	if _, err := client.LookupTrack(context.Background(), "missing"); err == nil {
		t.Error("LookupTrack() expected error for missing track")
	}
}
