// Package i18n provides internationalization support for user-facing messages
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

const (
	// DefaultLanguage is the fallback language when no translation is available
	DefaultLanguage = "en"
	// BerneseGermanMessages is a Swiss Dialect spoken in the Canton of Bern
	BerneseGermanMessages = "ch_be"
)

// Message keys shared by all languages.
const (
	KeyStatusProcessing   = "status.processing"
	KeyStatusDownloading  = "status.downloading"
	KeyStatusFallback     = "status.fallback"
	KeyErrorResolution    = "error.resolution"
	KeyErrorGeneric       = "error.generic"
	KeyAudioCaption       = "audio.caption"
	KeyTrackUnknownTitle  = "track.unknown_title"
	KeyTrackUnknownArtist = "track.unknown_artist"
)

// languageTags maps BCP 47 tags onto supported language codes, in matcher order.
var languageTags = []struct {
	tag  language.Tag
	code string
}{
	{language.English, DefaultLanguage},
	{language.MustParse("gsw-CH"), BerneseGermanMessages},
}

var matcher = func() language.Matcher {
	tags := make([]language.Tag, len(languageTags))
	for i, lt := range languageTags {
		tags[i] = lt.tag
	}
	return language.NewMatcher(tags)
}()

// Localizer provides translation functionality
type Localizer struct {
	language string
	messages map[string]string
}

// NewLocalizer creates a new localizer for the specified language
func NewLocalizer(language string) *Localizer {
	language = MatchLanguage(language)
	return &Localizer{
		language: language,
		messages: getMessages(language),
	}
}

// Language returns the supported language code the localizer resolved to.
func (l *Localizer) Language() string {
	return l.language
}

// T translates a message key, with optional parameters for formatting
func (l *Localizer) T(key string, args ...interface{}) string {
	if message, exists := l.messages[key]; exists {
		return format(message, args)
	}

	// Fallback to English if key not found in current language
	if l.language != DefaultLanguage {
		if fallbackMessage, exists := getMessages(DefaultLanguage)[key]; exists {
			return format(fallbackMessage, args)
		}
	}

	// Ultimate fallback: return the key itself
	return key
}

func format(message string, args []interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(message, args...)
	}
	return message
}

// MatchLanguage resolves a configured language to a supported code.
// Supported codes match as-is; anything else goes through BCP 47 matching
// ("en-US" → en, "gsw" → ch_be) and falls back to DefaultLanguage.
func MatchLanguage(requested string) string {
	requested = strings.TrimSpace(requested)
	for _, code := range GetSupportedLanguages() {
		if strings.EqualFold(requested, code) {
			return code
		}
	}

	tag, err := language.Parse(requested)
	if err != nil {
		return DefaultLanguage
	}

	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return DefaultLanguage
	}
	return languageTags[index].code
}

// IsSupported reports whether code is a supported language code.
func IsSupported(code string) bool {
	for _, supported := range GetSupportedLanguages() {
		if code == supported {
			return true
		}
	}
	return false
}

// GetSupportedLanguages returns list of supported language codes
func GetSupportedLanguages() []string {
	return []string{DefaultLanguage, BerneseGermanMessages}
}

// getMessages returns the message map for a given language
func getMessages(language string) map[string]string {
	switch language {
	case DefaultLanguage:
		return englishMessages
	case BerneseGermanMessages:
		return berneseGermanMessages
	default:
		return englishMessages // Default to English
	}
}
