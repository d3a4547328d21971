// Package musiclink resolves track links to downloadable audio through conversion providers.
package musiclink

import (
	"context"
	"errors"

	"trackrelay/pkg/text"
)

const (
	// ProviderPrimary names the primary conversion provider.
	ProviderPrimary = "primary"
	// ProviderSecondary names the secondary conversion provider.
	ProviderSecondary = "secondary"
	// ProviderCache names results served from the resolution cache.
	ProviderCache = "cache"
)

var (
	// ErrPrimaryUnsuccessful is returned when the primary provider answers without a usable download link.
	ErrPrimaryUnsuccessful = errors.New("primary provider did not return a download link")
	// ErrNoTrackData is returned when the secondary provider answers without a usable track.
	ErrNoTrackData = errors.New("no track data found in the response")
	// ErrMalformedPayload is returned when a provider answers with invalid JSON.
	ErrMalformedPayload = errors.New("malformed provider payload")
)

// TrackResult is a provider response normalized into one shape.
// DownloadURL is never empty on a returned result.
type TrackResult struct {
	Title       string // Track title, may be empty.
	Artist      string // Artist name(s), may be empty.
	DownloadURL string // Remote audio location.
	CoverURL    string // Optional cover or preview location.
	Provider    string // Which provider produced the result.
}

// IsPreview reports whether the result is a preview clip rather than a full track.
// The secondary provider only exposes preview clips.
func (r *TrackResult) IsPreview() bool {
	return r.Provider == ProviderSecondary
}

// Provider fetches a normalized track result for a track reference.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Fetch queries the provider. A nil error implies a result with a non-empty DownloadURL.
	Fetch(ctx context.Context, ref text.TrackReference) (*TrackResult, error)
}

// Cache stores resolved results keyed by track id.
type Cache interface {
	Get(trackID string) (*TrackResult, bool)
	Add(trackID string, result *TrackResult)
}

// TrackMetadata holds descriptive fields used to fill gaps in a provider result.
type TrackMetadata struct {
	Title    string
	Artist   string
	CoverURL string
}

// MetadataLookup fetches track metadata by track id.
type MetadataLookup interface {
	LookupTrack(ctx context.Context, trackID string) (*TrackMetadata, error)
}

// CallObserver is notified about every provider call.
type CallObserver interface {
	ObserveProviderCall(provider, status string)
}

// ResolutionError is returned when every provider failed.
// Error() reports the last failure; the primary failure is kept for diagnostics.
type ResolutionError struct {
	Primary error
	Last    error
}

func (e *ResolutionError) Error() string {
	if e.Last != nil {
		return e.Last.Error()
	}
	if e.Primary != nil {
		return e.Primary.Error()
	}
	return "track could not be resolved"
}

// Unwrap exposes both failure causes to errors.Is and errors.As.
func (e *ResolutionError) Unwrap() []error {
	var errs []error
	if e.Last != nil {
		errs = append(errs, e.Last)
	}
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	return errs
}
