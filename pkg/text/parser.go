// Package text provides track link detection for chat messages.
package text

import (
	"regexp"
)

const (
	// trackLinkGroups is the number of submatches returned for a track link (full match + id).
	trackLinkGroups = 2
)

var (
	// trackLinkRegex matches Spotify track links. Scheme and domain are case-sensitive.
	trackLinkRegex = regexp.MustCompile(`https://open\.spotify\.com/track/([a-zA-Z0-9]+)`)
)

// TrackReference identifies one track link found in a message.
type TrackReference struct {
	SourceURL string // The matched link as it appeared in the message.
	TrackID   string // Opaque alphanumeric id captured from the link.
}

// Parser detects track links in free text.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Detect returns the first track link in text. The id is passed through unmodified.
func (p *Parser) Detect(text string) (TrackReference, bool) {
	return Detect(text)
}

// Detect returns the first track link in text.
func Detect(text string) (TrackReference, bool) {
	matches := trackLinkRegex.FindStringSubmatch(text)
	if len(matches) < trackLinkGroups {
		return TrackReference{}, false
	}

	return TrackReference{
		SourceURL: matches[0],
		TrackID:   matches[1],
	}, true
}

// ContainsTrackLink reports whether text contains a track link.
func (p *Parser) ContainsTrackLink(text string) bool {
	return trackLinkRegex.MatchString(text)
}
