package musiclink

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"trackrelay/pkg/text"
)

const (
	// SecondaryDefaultBaseURL is the secondary provider's endpoint.
	SecondaryDefaultBaseURL = "https://zylalabs.com/api/1599/spotify+song+downloader+api/1283/download"
	// SecondaryDefaultTimeout is the secondary provider's request timeout.
	SecondaryDefaultTimeout = 30 * time.Second
	// artistSeparator joins multiple artist names.
	artistSeparator = ", "
)

// SecondaryConfig configures the secondary provider.
type SecondaryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SecondaryProvider queries the secondary provider with the bare track id.
// It only exposes preview clips, so its results are previews, not full tracks.
type SecondaryProvider struct {
	config SecondaryConfig
	client *http.Client
}

// NewSecondaryProvider creates a new secondary provider client.
func NewSecondaryProvider(config SecondaryConfig) *SecondaryProvider {
	if config.BaseURL == "" {
		config.BaseURL = SecondaryDefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = SecondaryDefaultTimeout
	}

	return &SecondaryProvider{
		config: config,
		client: newHTTPClient(config.Timeout),
	}
}

// Name identifies the provider.
func (p *SecondaryProvider) Name() string {
	return ProviderSecondary
}

// Fetch queries the secondary provider.
func (p *SecondaryProvider) Fetch(ctx context.Context, ref text.TrackReference) (*TrackResult, error) {
	query := url.Values{}
	query.Set("ids", ref.TrackID)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+p.config.APIKey)

	body, err := fetchJSON(ctx, p.client, p.config.BaseURL, query, headers, ProviderSecondary)
	if err != nil {
		return nil, err
	}

	return parseSecondaryPayload(body)
}

// isSecondaryShape recognizes a usable secondary payload: a non-empty track list whose
// first element carries a preview URL.
func isSecondaryShape(body []byte) bool {
	tracks := gjson.GetBytes(body, "tracks")
	if !tracks.IsArray() || len(tracks.Array()) == 0 {
		return false
	}
	preview := gjson.GetBytes(body, "tracks.0.preview_url")
	return preview.Type == gjson.String && strings.TrimSpace(preview.Str) != ""
}

// parseSecondaryPayload maps the first track of a secondary payload into a TrackResult.
// Fields are read with the same exact-key lookups the shape predicate uses.
func parseSecondaryPayload(body []byte) (*TrackResult, error) {
	if !isSecondaryShape(body) {
		return nil, ErrNoTrackData
	}

	track := gjson.GetBytes(body, "tracks.0")
	artists := track.Get("artists.#.name").Array()
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.String())
	}

	preview := track.Get("preview_url").Str
	return &TrackResult{
		Title:       track.Get("name").String(),
		Artist:      strings.Join(names, artistSeparator),
		DownloadURL: preview,
		CoverURL:    preview,
		Provider:    ProviderSecondary,
	}, nil
}
