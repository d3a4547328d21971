// Package chat provides a unified interface for chat frontends.
package chat

import (
	"context"
	"io"
)

// Message represents a normalized inbound chat message.
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	SenderName string
	Text       string
	IsGroup    bool
	Raw        any // underlying library message struct
}

// AudioUpload is an audio file delivered to a chat.
type AudioUpload struct {
	Filename  string
	Data      io.Reader
	Title     string
	Performer string
	Caption   string
	// ThumbnailURL is fetched and attached as the track cover when set.
	ThumbnailURL string
}

// Frontend defines the unified interface for chat integrations.
type Frontend interface {
	// Start connects to the chat platform.
	Start(ctx context.Context) error

	// Listen blocks until ctx is done, calling handler for each inbound message.
	Listen(ctx context.Context, handler func(*Message)) error

	// SendText sends a text message and returns its ID.
	SendText(ctx context.Context, chatID, text string) (string, error)

	// EditMessage replaces the text of a previously sent message.
	EditMessage(ctx context.Context, chatID, messageID, text string) error

	// DeleteMessage deletes a message by its ID.
	DeleteMessage(ctx context.Context, chatID, messageID string) error

	// SendAudio uploads an audio file and returns the message ID.
	SendAudio(ctx context.Context, chatID string, audio AudioUpload) (string, error)
}
