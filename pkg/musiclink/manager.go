package musiclink

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"trackrelay/pkg/text"
)

const (
	callStatusSuccess = "success"
	callStatusFailure = "failure"
)

// ManagerConfig wires the optional collaborators of a Manager.
type ManagerConfig struct {
	Cache    Cache          // Optional resolution cache.
	Metadata MetadataLookup // Optional lookup used when title or artist is missing.
	Observer CallObserver   // Optional provider call observer.
	Logger   *zap.Logger
}

// Manager resolves a track through an ordered chain of providers.
// Providers are tried one after another, never concurrently; the first result wins.
type Manager struct {
	providers []Provider
	cache     Cache
	metadata  MetadataLookup
	observer  CallObserver
	logger    *zap.Logger
}

// NewManager creates a manager that tries the given providers in order.
func NewManager(config ManagerConfig, providers ...Provider) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		providers: providers,
		cache:     config.Cache,
		metadata:  config.Metadata,
		observer:  config.Observer,
		logger:    logger,
	}
}

// NewDefaultManager creates the primary → secondary chain.
func NewDefaultManager(primary PrimaryConfig, secondary SecondaryConfig, config ManagerConfig) *Manager {
	return NewManager(config, NewPrimaryProvider(primary), NewSecondaryProvider(secondary))
}

// Resolve returns the first provider result for ref.
// It fails with a *ResolutionError only when every provider failed.
func (m *Manager) Resolve(ctx context.Context, ref text.TrackReference) (*TrackResult, error) {
	if m.cache != nil {
		if cached, ok := m.cache.Get(ref.TrackID); ok {
			m.logger.Debug("Serving track from resolution cache", zap.String("track_id", ref.TrackID))
			m.observe(ProviderCache, callStatusSuccess)
			return cached, nil
		}
	}

	if len(m.providers) == 0 {
		return nil, &ResolutionError{Last: errors.New("no providers configured")}
	}

	var firstErr, lastErr error
	for _, provider := range m.providers {
		result, err := provider.Fetch(ctx, ref)
		if err == nil && result != nil && result.DownloadURL != "" {
			m.observe(provider.Name(), callStatusSuccess)
			m.logResult(ref, result)
			m.fillMetadata(ctx, ref, result)
			if m.cache != nil {
				m.cache.Add(ref.TrackID, result)
			}
			return result, nil
		}
		if err == nil {
			err = ErrNoTrackData
		}

		m.observe(provider.Name(), callStatusFailure)
		m.logger.Warn("Provider failed to resolve track",
			zap.String("provider", provider.Name()),
			zap.String("track_id", ref.TrackID),
			zap.Error(err))

		if firstErr == nil {
			firstErr = err
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &ResolutionError{Primary: firstErr, Last: lastErr}
}

func (m *Manager) logResult(ref text.TrackReference, result *TrackResult) {
	if result.IsPreview() {
		m.logger.Warn("Resolved track to a preview clip only",
			zap.String("provider", result.Provider),
			zap.String("track_id", ref.TrackID))
		return
	}
	m.logger.Info("Resolved track",
		zap.String("provider", result.Provider),
		zap.String("track_id", ref.TrackID),
		zap.String("title", result.Title),
		zap.String("artist", result.Artist))
}

// fillMetadata completes a missing title or artist and gives previews a real
// album cover. Lookup failures are not fatal.
func (m *Manager) fillMetadata(ctx context.Context, ref text.TrackReference, result *TrackResult) {
	if m.metadata == nil {
		return
	}
	if result.Title != "" && result.Artist != "" && !result.IsPreview() {
		return
	}

	meta, err := m.metadata.LookupTrack(ctx, ref.TrackID)
	if err != nil {
		m.logger.Debug("Metadata lookup failed", zap.String("track_id", ref.TrackID), zap.Error(err))
		return
	}
	if meta == nil {
		return
	}

	if result.Title == "" {
		result.Title = meta.Title
	}
	if result.Artist == "" {
		result.Artist = meta.Artist
	}
	// A preview's CoverURL is the clip itself.
	if result.IsPreview() && meta.CoverURL != "" {
		result.CoverURL = meta.CoverURL
	}
}

func (m *Manager) observe(provider, status string) {
	if m.observer != nil {
		m.observer.ObserveProviderCall(provider, status)
	}
}
