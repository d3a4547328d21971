package i18n

// berneseGermanMessages contains all Bernese Swiss German (Bärndütsch) translations
var berneseGermanMessages = map[string]string{
	// Status message
	KeyStatusProcessing:  "Bi am Spotify-Link verarbeite: %s",
	KeyStatusDownloading: "Lade s Lied '%s' vo %s abe...",
	KeyStatusFallback:    "Abelade het nid funktioniert, hie isch dr diräkt Link: %s",

	// Error messages
	KeyErrorResolution: "Sorry, ha das Lied nid chönne abelade. Fähler: %s",
	KeyErrorGeneric:    "Sorry, bim Verarbeite vom Spotify-Link isch öppis schief gloffe.",

	// Audio upload
	KeyAudioCaption:       "🎵 %s - %s",
	KeyTrackUnknownTitle:  "Spotify-Lied",
	KeyTrackUnknownArtist: "Unbekannte Künstler",
}
