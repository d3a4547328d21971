package musiclink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"trackrelay/pkg/text"
)

var testRef = text.TrackReference{
	SourceURL: "https://open.spotify.com/track/abc123XYZ",
	TrackID:   "abc123XYZ",
}

func TestParsePrimaryPayload(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    error
		wantURL    string
		wantTitle  string
		wantArtist string
		wantCover  string
	}{
		{
			name:       "Successful payload",
			body:       `{"success":true,"data":{"downloadLink":"http://cdn/x.mp3","title":"Song","artist":"Artist","cover":"http://cdn/c.jpg"}}`,
			wantURL:    "http://cdn/x.mp3",
			wantTitle:  "Song",
			wantArtist: "Artist",
			wantCover:  "http://cdn/c.jpg",
		},
		{
			name:    "Empty download link is not a result",
			body:    `{"success":true,"data":{"downloadLink":"","title":"Song","artist":"Artist"}}`,
			wantErr: ErrPrimaryUnsuccessful,
		},
		{
			name:    "Success false",
			body:    `{"success":false,"data":{"downloadLink":"http://cdn/x.mp3"}}`,
			wantErr: ErrPrimaryUnsuccessful,
		},
		{
			name:    "Success as string is not true",
			body:    `{"success":"true","data":{"downloadLink":"http://cdn/x.mp3"}}`,
			wantErr: ErrPrimaryUnsuccessful,
		},
		{
			name:    "Missing data",
			body:    `{"success":true}`,
			wantErr: ErrPrimaryUnsuccessful,
		},
		{
			name:       "Case-variant key does not shadow data",
			body:       `{"success":true,"data":{"downloadLink":"http://cdn/x.mp3","title":"Song","artist":"Artist"},"Data":null}`,
			wantURL:    "http://cdn/x.mp3",
			wantTitle:  "Song",
			wantArtist: "Artist",
		},
		{
			name:       "First duplicate data key wins",
			body:       `{"success":true,"data":{"downloadLink":"http://cdn/x.mp3","title":"Song","artist":"Artist"},"data":null}`,
			wantURL:    "http://cdn/x.mp3",
			wantTitle:  "Song",
			wantArtist: "Artist",
		},
		{
			name:    "Only a case-variant data key",
			body:    `{"success":true,"Data":{"downloadLink":"http://cdn/x.mp3"}}`,
			wantErr: ErrPrimaryUnsuccessful,
		},
		{
			name:    "Secondary shape is not a primary result",
			body:    `{"tracks":[{"name":"S2","artists":[{"name":"A2"}],"preview_url":"http://cdn/p.mp3"}]}`,
			wantErr: ErrPrimaryUnsuccessful,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parsePrimaryPayload([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parsePrimaryPayload() error = %v, want %v", err, tt.wantErr)
				}
				if result != nil {
					t.Errorf("parsePrimaryPayload() returned result on failure: %+v", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePrimaryPayload() unexpected error: %v", err)
			}
			if result.DownloadURL != tt.wantURL {
				t.Errorf("DownloadURL = %q, want %q", result.DownloadURL, tt.wantURL)
			}
			if result.Title != tt.wantTitle || result.Artist != tt.wantArtist {
				t.Errorf("Title/Artist = %q/%q, want %q/%q", result.Title, result.Artist, tt.wantTitle, tt.wantArtist)
			}
			if result.CoverURL != tt.wantCover {
				t.Errorf("CoverURL = %q, want %q", result.CoverURL, tt.wantCover)
			}
			if result.Provider != ProviderPrimary {
				t.Errorf("Provider = %q, want %q", result.Provider, ProviderPrimary)
			}
		})
	}
}

func TestParseSecondaryPayload(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    error
		wantTitle  string
		wantArtist string
		wantURL    string
	}{
		{
			name:       "Single artist",
			body:       `{"tracks":[{"name":"S2","artists":[{"name":"A2"}],"preview_url":"http://cdn/p.mp3"}]}`,
			wantTitle:  "S2",
			wantArtist: "A2",
			wantURL:    "http://cdn/p.mp3",
		},
		{
			name:       "Multiple artists joined",
			body:       `{"tracks":[{"name":"Duet","artists":[{"name":"A"},{"name":"B"},{"name":"C"}],"preview_url":"http://cdn/d.mp3"}]}`,
			wantTitle:  "Duet",
			wantArtist: "A, B, C",
			wantURL:    "http://cdn/d.mp3",
		},
		{
			name:       "Only the first track is used",
			body:       `{"tracks":[{"name":"One","artists":[],"preview_url":"http://cdn/1.mp3"},{"name":"Two","preview_url":"http://cdn/2.mp3"}]}`,
			wantTitle:  "One",
			wantArtist: "",
			wantURL:    "http://cdn/1.mp3",
		},
		{
			name:       "Case-variant key does not shadow tracks",
			body:       `{"tracks":[{"name":"S2","artists":[{"name":"A2"}],"preview_url":"http://cdn/p.mp3"}],"Tracks":[]}`,
			wantTitle:  "S2",
			wantArtist: "A2",
			wantURL:    "http://cdn/p.mp3",
		},
		{
			name:    "Only a case-variant tracks key",
			body:    `{"Tracks":[{"name":"S2","preview_url":"http://cdn/p.mp3"}]}`,
			wantErr: ErrNoTrackData,
		},
		{
			name:    "Empty track list",
			body:    `{"tracks":[]}`,
			wantErr: ErrNoTrackData,
		},
		{
			name:    "Null preview url",
			body:    `{"tracks":[{"name":"S","artists":[{"name":"A"}],"preview_url":null}]}`,
			wantErr: ErrNoTrackData,
		},
		{
			name:    "No tracks field",
			body:    `{"error":"quota exceeded"}`,
			wantErr: ErrNoTrackData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseSecondaryPayload([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseSecondaryPayload() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSecondaryPayload() unexpected error: %v", err)
			}
			if result.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", result.Title, tt.wantTitle)
			}
			if result.Artist != tt.wantArtist {
				t.Errorf("Artist = %q, want %q", result.Artist, tt.wantArtist)
			}
			if result.DownloadURL != tt.wantURL || result.CoverURL != tt.wantURL {
				t.Errorf("DownloadURL/CoverURL = %q/%q, want both %q", result.DownloadURL, result.CoverURL, tt.wantURL)
			}
			if !result.IsPreview() {
				t.Error("Secondary results should be marked as previews")
			}
		})
	}
}

func TestPrimaryProvider_Fetch(t *testing.T) {
	var gotSongID, gotKey, gotHost string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSongID = r.URL.Query().Get("songId")
		gotKey = r.Header.Get("x-rapidapi-key")
		gotHost = r.Header.Get("x-rapidapi-host")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"downloadLink":"http://cdn/x.mp3","title":"Song","artist":"Artist"}}`))
	}))
	defer server.Close()

	provider := NewPrimaryProvider(PrimaryConfig{
		BaseURL: server.URL,
		APIKey:  "key",
		APIHost: "host.example",
	})

	result, err := provider.Fetch(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}

	if gotSongID != testRef.SourceURL {
		t.Errorf("songId = %q, want %q", gotSongID, testRef.SourceURL)
	}
	if gotKey != "key" || gotHost != "host.example" {
		t.Errorf("auth headers = %q/%q, want key/host.example", gotKey, gotHost)
	}
	if result.DownloadURL != "http://cdn/x.mp3" {
		t.Errorf("DownloadURL = %q", result.DownloadURL)
	}
}

func TestPrimaryProvider_DefaultTimeoutIsLong(t *testing.T) {
	provider := NewPrimaryProvider(PrimaryConfig{})

	if provider.client.Timeout != PrimaryDefaultTimeout {
		t.Errorf("Timeout = %v, want %v", provider.client.Timeout, PrimaryDefaultTimeout)
	}
	if provider.client.Timeout < 10*time.Minute {
		t.Errorf("Primary timeout should tolerate slow conversion, got %v", provider.client.Timeout)
	}
	if provider.config.BaseURL != PrimaryDefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", provider.config.BaseURL)
	}
}

func TestPrimaryProvider_FetchNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer server.Close()

	provider := NewPrimaryProvider(PrimaryConfig{BaseURL: server.URL})

	_, err := provider.Fetch(context.Background(), testRef)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Fetch() error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusTooManyRequests)
	}
}

func TestPrimaryProvider_FetchMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	provider := NewPrimaryProvider(PrimaryConfig{BaseURL: server.URL})

	_, err := provider.Fetch(context.Background(), testRef)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Fetch() error = %v, want ErrMalformedPayload", err)
	}
}

func TestSecondaryProvider_Fetch(t *testing.T) {
	var gotIDs, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("ids")
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"tracks":[{"name":"S2","artists":[{"name":"A2"}],"preview_url":"http://cdn/p.mp3"}]}`))
	}))
	defer server.Close()

	provider := NewSecondaryProvider(SecondaryConfig{BaseURL: server.URL, APIKey: "token"})

	result, err := provider.Fetch(context.Background(), testRef)
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}

	if gotIDs != testRef.TrackID {
		t.Errorf("ids = %q, want %q", gotIDs, testRef.TrackID)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer token")
	}
	if result.Title != "S2" || result.Artist != "A2" || result.DownloadURL != "http://cdn/p.mp3" {
		t.Errorf("unexpected result: %+v", result)
	}
	if provider.client.Timeout != SecondaryDefaultTimeout {
		t.Errorf("Timeout = %v, want %v", provider.client.Timeout, SecondaryDefaultTimeout)
	}
}

func TestStatusError_Error(t *testing.T) {
	err := &StatusError{Provider: "primary", StatusCode: 500, Body: strings.Repeat("x", 10)}
	if !strings.Contains(err.Error(), "status code 500") {
		t.Errorf("Error() = %q, want status code", err.Error())
	}

	err = &StatusError{Provider: "secondary", StatusCode: 404}
	if err.Error() != "secondary provider request failed with status code 404" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantLen  int
		wantTail string
	}{
		{name: "Short body kept", body: "quota exceeded", wantLen: len("quota exceeded")},
		{name: "Long ASCII body cut", body: strings.Repeat("x", 500), wantLen: maxErrorBodySnippet + 3, wantTail: "..."},
		{name: "Cut inside a multi-byte rune", body: "x" + strings.Repeat("é", 300), wantLen: maxErrorBodySnippet - 1 + 3, wantTail: "..."},
		{name: "Invalid bytes dropped", body: "bad\xffbody", wantLen: len("badbody")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snippet([]byte(tt.body))
			if !utf8.ValidString(got) {
				t.Errorf("snippet() = %q is not valid UTF-8", got)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len(snippet()) = %d, want %d", len(got), tt.wantLen)
			}
			if !strings.HasSuffix(got, tt.wantTail) {
				t.Errorf("snippet() = %q, want suffix %q", got, tt.wantTail)
			}
		})
	}
}
