// Package telegram provides Telegram Bot API integration using go-telegram/bot library.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"trackrelay/internal/chat"
	"trackrelay/internal/flood"
	"trackrelay/pkg/text"
)

const (
	chatTypeGroup      = "group"
	chatTypeSuperGroup = "supergroup"
	// thumbnailMaxBytes is Telegram's size limit for audio thumbnails.
	thumbnailMaxBytes = 200 * 1024
	thumbnailTimeout  = 15 * time.Second
	thumbnailFilename = "cover.jpg"
)

// ErrNotStarted is returned when the bot is used before Start.
var ErrNotStarted = errors.New("telegram frontend is not started")

// Config holds Telegram-specific configuration.
type Config struct {
	BotToken string
	// AllowedChats restricts which chats are served. Empty serves every chat.
	AllowedChats []int64
	// FloodLimitPerMinute caps track requests per sender per chat. Zero disables the limit.
	FloodLimitPerMinute int
}

// Frontend implements the chat.Frontend interface for Telegram.
type Frontend struct {
	config     *Config
	logger     *zap.Logger
	bot        *bot.Bot
	parser     *text.Parser
	floodgate  *flood.Gate
	httpClient *http.Client
	allowed    map[int64]struct{}

	botOptions []bot.Option

	messageHandler func(*chat.Message)
}

// NewFrontend creates a new Telegram frontend.
func NewFrontend(config *Config, logger *zap.Logger) *Frontend {
	allowed := make(map[int64]struct{}, len(config.AllowedChats))
	for _, id := range config.AllowedChats {
		allowed[id] = struct{}{}
	}

	return &Frontend{
		config:     config,
		logger:     logger,
		parser:     text.NewParser(),
		floodgate:  flood.New(config.FloodLimitPerMinute),
		httpClient: &http.Client{Timeout: thumbnailTimeout},
		allowed:    allowed,
	}
}

// Start creates the bot client.
func (f *Frontend) Start(_ context.Context) error {
	f.logger.Info("Starting Telegram frontend",
		zap.Int("allowed_chats", len(f.allowed)),
		zap.Int("flood_limit_per_minute", f.config.FloodLimitPerMinute))

	opts := append([]bot.Option{bot.WithDefaultHandler(f.handleUpdate)}, f.botOptions...)

	b, err := bot.New(f.config.BotToken, opts...)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}

	f.bot = b

	f.logger.Info("Telegram frontend started successfully")
	return nil
}

// Listen polls for updates until ctx is done.
func (f *Frontend) Listen(ctx context.Context, handler func(*chat.Message)) error {
	if f.bot == nil {
		return ErrNotStarted
	}

	f.messageHandler = handler

	f.bot.Start(ctx)
	f.floodgate.Stop()

	return nil
}

// SendText sends a text message with link previews disabled.
func (f *Frontend) SendText(ctx context.Context, chatID, text string) (string, error) {
	if f.bot == nil {
		return "", ErrNotStarted
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid chat ID: %w", err)
	}

	disabled := true
	msg, err := f.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chatIDInt,
		Text:               text,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	return strconv.Itoa(msg.ID), nil
}

// EditMessage replaces the text of a message the bot sent.
func (f *Frontend) EditMessage(ctx context.Context, chatID, messageID, text string) error {
	if f.bot == nil {
		return ErrNotStarted
	}

	chatIDInt, msgIDInt, err := parseIDs(chatID, messageID)
	if err != nil {
		return err
	}

	disabled := true
	_, err = f.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:             chatIDInt,
		MessageID:          msgIDInt,
		Text:               text,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	})
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}

	return nil
}

// DeleteMessage deletes a message by its ID.
func (f *Frontend) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	if f.bot == nil {
		return ErrNotStarted
	}

	chatIDInt, msgIDInt, err := parseIDs(chatID, messageID)
	if err != nil {
		return err
	}

	_, err = f.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatIDInt,
		MessageID: msgIDInt,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

// SendAudio uploads an audio file. A thumbnail that cannot be fetched is skipped.
func (f *Frontend) SendAudio(ctx context.Context, chatID string, audio chat.AudioUpload) (string, error) {
	if f.bot == nil {
		return "", ErrNotStarted
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid chat ID: %w", err)
	}

	params := &bot.SendAudioParams{
		ChatID:    chatIDInt,
		Audio:     &models.InputFileUpload{Filename: audio.Filename, Data: audio.Data},
		Title:     audio.Title,
		Performer: audio.Performer,
		Caption:   audio.Caption,
	}

	if audio.ThumbnailURL != "" {
		thumb, thumbErr := f.fetchThumbnail(ctx, audio.ThumbnailURL)
		if thumbErr != nil {
			f.logger.Debug("Skipping audio thumbnail", zap.String("url", audio.ThumbnailURL), zap.Error(thumbErr))
		} else {
			params.Thumbnail = &models.InputFileUpload{Filename: thumbnailFilename, Data: thumb}
		}
	}

	msg, err := f.bot.SendAudio(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to send audio: %w", err)
	}

	return strconv.Itoa(msg.ID), nil
}

func (f *Frontend) fetchThumbnail(ctx context.Context, url string) (io.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("thumbnail request failed with status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, thumbnailMaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail: %w", err)
	}
	if len(data) > thumbnailMaxBytes {
		return nil, fmt.Errorf("thumbnail exceeds %d bytes", thumbnailMaxBytes)
	}

	return bytes.NewReader(data), nil
}

func (f *Frontend) handleUpdate(_ context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message != nil {
		f.handleMessage(update.Message)
	}
}

func (f *Frontend) handleMessage(msg *models.Message) {
	if msg.Text == "" {
		return
	}

	// Ignore messages from bots, including ourselves
	if msg.From != nil && msg.From.IsBot {
		return
	}

	if !f.isChatAllowed(msg.Chat.ID) {
		f.logger.Debug("Ignoring message from chat outside the allow-list", zap.Int64("chat_id", msg.Chat.ID))
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	var senderID, senderName string
	if msg.From != nil {
		senderID = strconv.FormatInt(msg.From.ID, 10)
		senderName = getUserDisplayName(msg.From)
	}

	if f.parser.ContainsTrackLink(msg.Text) && !f.floodgate.Allow(chatID, senderID) {
		f.logger.Info("Dropping track request from flooding sender",
			zap.String("chat_id", chatID),
			zap.String("sender", senderName))
		return
	}

	message := chat.Message{
		ID:         strconv.Itoa(msg.ID),
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       msg.Text,
		IsGroup:    msg.Chat.Type == chatTypeGroup || msg.Chat.Type == chatTypeSuperGroup,
		Raw:        msg,
	}

	if f.messageHandler != nil {
		f.messageHandler(&message)
	}
}

func (f *Frontend) isChatAllowed(chatID int64) bool {
	if len(f.allowed) == 0 {
		return true
	}
	_, ok := f.allowed[chatID]
	return ok
}

func getUserDisplayName(user *models.User) string {
	if user.Username != "" {
		return "@" + user.Username
	}

	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}

	return name
}

func parseIDs(chatID, messageID string) (int64, int, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chat ID: %w", err)
	}

	msgIDInt, err := strconv.Atoi(messageID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid message ID: %w", err)
	}

	return chatIDInt, msgIDInt, nil
}
