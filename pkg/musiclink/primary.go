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
	// PrimaryDefaultBaseURL is the primary provider's endpoint.
	PrimaryDefaultBaseURL = "https://spotify-downloader9.p.rapidapi.com/downloadSong"
	// PrimaryDefaultTimeout is long on purpose: upstream conversion can take many minutes.
	PrimaryDefaultTimeout = 3000 * time.Second
)

// PrimaryConfig configures the primary provider.
type PrimaryConfig struct {
	BaseURL string
	APIKey  string
	APIHost string
	Timeout time.Duration
}

// PrimaryProvider queries the primary provider with the full source link.
type PrimaryProvider struct {
	config PrimaryConfig
	client *http.Client
}

// NewPrimaryProvider creates a new primary provider client.
func NewPrimaryProvider(config PrimaryConfig) *PrimaryProvider {
	if config.BaseURL == "" {
		config.BaseURL = PrimaryDefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = PrimaryDefaultTimeout
	}

	return &PrimaryProvider{
		config: config,
		client: newHTTPClient(config.Timeout),
	}
}

// Name identifies the provider.
func (p *PrimaryProvider) Name() string {
	return ProviderPrimary
}

// Fetch queries the primary provider.
func (p *PrimaryProvider) Fetch(ctx context.Context, ref text.TrackReference) (*TrackResult, error) {
	query := url.Values{}
	query.Set("songId", ref.SourceURL)

	headers := http.Header{}
	headers.Set("x-rapidapi-key", p.config.APIKey)
	headers.Set("x-rapidapi-host", p.config.APIHost)

	body, err := fetchJSON(ctx, p.client, p.config.BaseURL, query, headers, ProviderPrimary)
	if err != nil {
		return nil, err
	}

	return parsePrimaryPayload(body)
}

// isPrimaryShape recognizes a successful primary payload: success is exactly true and a
// non-empty download link is present.
func isPrimaryShape(body []byte) bool {
	if gjson.GetBytes(body, "success").Type != gjson.True {
		return false
	}
	link := gjson.GetBytes(body, "data.downloadLink")
	return link.Type == gjson.String && strings.TrimSpace(link.Str) != ""
}

// parsePrimaryPayload maps a primary payload into a TrackResult.
// Fields are read with the same exact-key lookups the shape predicate uses.
func parsePrimaryPayload(body []byte) (*TrackResult, error) {
	if !isPrimaryShape(body) {
		return nil, ErrPrimaryUnsuccessful
	}

	data := gjson.GetBytes(body, "data")
	return &TrackResult{
		Title:       data.Get("title").String(),
		Artist:      data.Get("artist").String(),
		DownloadURL: data.Get("downloadLink").Str,
		CoverURL:    data.Get("cover").String(),
		Provider:    ProviderPrimary,
	}, nil
}
