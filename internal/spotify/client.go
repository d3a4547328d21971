// Package spotify provides Spotify Web API track metadata lookups.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"trackrelay/pkg/musiclink"
)

// ErrNotConfigured is returned when no client credentials are configured.
var ErrNotConfigured = errors.New("spotify client credentials not configured")

// Config holds the client credentials used for metadata lookups.
type Config struct {
	ClientID     string
	ClientSecret string

	// Overrides for tests; empty means the public Spotify endpoints.
	TokenURL string
	APIURL   string
}

// Enabled reports whether both credentials are present.
func (c Config) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Client looks up track metadata with the client credentials flow.
// No user authorization is involved.
type Client struct {
	logger *zap.Logger
	client *spotify.Client
}

// NewClient creates a metadata client. It fails with ErrNotConfigured when
// either credential is missing.
func NewClient(ctx context.Context, config Config, logger *zap.Logger) (*Client, error) {
	if !config.Enabled() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	credentials := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     tokenURL,
	}

	var opts []spotify.ClientOption
	if config.APIURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimSuffix(config.APIURL, "/")+"/"))
	}

	return &Client{
		logger: logger,
		client: spotify.New(credentials.Client(ctx), opts...),
	}, nil
}

// LookupTrack fetches the title, artists and album cover of a track.
func (c *Client) LookupTrack(ctx context.Context, trackID string) (*musiclink.TrackMetadata, error) {
	track, err := c.client.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}

	meta := convertSpotifyTrack(track)
	c.logger.Debug("Looked up track metadata",
		zap.String("track_id", trackID),
		zap.String("title", meta.Title),
		zap.String("artist", meta.Artist))

	return meta, nil
}

func convertSpotifyTrack(track *spotify.FullTrack) *musiclink.TrackMetadata {
	artists := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	var cover string
	if len(track.Album.Images) > 0 {
		cover = track.Album.Images[0].URL
	}

	return &musiclink.TrackMetadata{
		Title:    track.Name,
		Artist:   strings.Join(artists, ", "),
		CoverURL: cover,
	}
}
