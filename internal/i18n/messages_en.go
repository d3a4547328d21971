package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Status message
	KeyStatusProcessing:  "Processing Spotify link: %s",
	KeyStatusDownloading: "Downloading track '%s' by %s...",
	KeyStatusFallback:    "Download failed, here's the direct link: %s",

	// Error messages
	KeyErrorResolution: "Sorry, I could not download this track. Error: %s",
	KeyErrorGeneric:    "Sorry, an error occurred while processing the Spotify link.",

	// Audio upload
	KeyAudioCaption:       "🎵 %s - %s",
	KeyTrackUnknownTitle:  "Spotify Track",
	KeyTrackUnknownArtist: "Unknown Artist",
}
