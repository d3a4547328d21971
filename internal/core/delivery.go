package core

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bogem/id3v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"trackrelay/internal/chat"
	"trackrelay/internal/i18n"
	"trackrelay/pkg/musiclink"
	"trackrelay/pkg/text"
)

const (
	scratchFileExt  = ".mp3"
	scratchFilePerm = 0o600
	id3Version      = 3
)

// id3Magic starts every ID3v2 tagged stream.
var id3Magic = []byte("ID3")

// AudioTransport is the part of a chat frontend the delivery pipeline needs.
type AudioTransport interface {
	SendAudio(ctx context.Context, chatID string, audio chat.AudioUpload) (string, error)
}

// Deliverer streams a resolved track into scratch storage and uploads it.
type Deliverer struct {
	fs         afero.Fs
	scratchDir string
	transport  AudioTransport
	localizer  *i18n.Localizer
	client     *http.Client
	logger     *zap.Logger
}

// NewDeliverer creates a delivery pipeline writing into scratchDir on fs.
// The scratch directory must already exist.
func NewDeliverer(
	fs afero.Fs,
	scratchDir string,
	transport AudioTransport,
	localizer *i18n.Localizer,
	logger *zap.Logger,
) *Deliverer {
	return &Deliverer{
		fs:         fs,
		scratchDir: scratchDir,
		transport:  transport,
		localizer:  localizer,
		client:     &http.Client{},
		logger:     logger,
	}
}

// EnsureScratchDir creates the scratch directory if it is missing.
func EnsureScratchDir(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
	}
	return nil
}

// ScratchPath returns the scratch file path used for trackID.
func (d *Deliverer) ScratchPath(trackID string) string {
	return filepath.Join(d.scratchDir, trackID+scratchFileExt)
}

// Deliver uploads result to chatID and settles the status message.
// Download and upload failures never surface as errors; they yield FallbackLink.
// The returned error is only set when the status message itself could not be updated.
func (d *Deliverer) Deliver(
	ctx context.Context,
	chatID string,
	ref text.TrackReference,
	result *musiclink.TrackResult,
	status *StatusNotifier,
) (DeliveryOutcome, error) {
	title, artist := d.displayNames(result)

	if err := status.MarkDownloading(ctx, title, artist); err != nil {
		return FallbackLink, err
	}

	logger := d.logger.With(zap.String("track_id", ref.TrackID), zap.String("provider", result.Provider))

	if err := d.downloadAndUpload(ctx, chatID, ref, result, title, artist); err != nil {
		logger.Warn("Delivery failed, falling back to direct link", zap.Error(err))
		return FallbackLink, status.ShowFallback(ctx, result.DownloadURL)
	}

	logger.Info("Delivered track", zap.String("title", title), zap.String("artist", artist))
	return Delivered, status.Delete(ctx)
}

func (d *Deliverer) displayNames(result *musiclink.TrackResult) (title, artist string) {
	title, artist = result.Title, result.Artist
	if title == "" {
		title = d.localizer.T(i18n.KeyTrackUnknownTitle)
	}
	if artist == "" {
		artist = d.localizer.T(i18n.KeyTrackUnknownArtist)
	}
	return title, artist
}

func (d *Deliverer) downloadAndUpload(
	ctx context.Context,
	chatID string,
	ref text.TrackReference,
	result *musiclink.TrackResult,
	title, artist string,
) error {
	path := d.ScratchPath(ref.TrackID)
	defer d.removeScratch(path)

	if err := d.download(ctx, result.DownloadURL, path, title, artist); err != nil {
		return err
	}

	file, err := d.fs.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open scratch file: %w", err)
	}
	defer file.Close()

	upload := chat.AudioUpload{
		Filename:  filepath.Base(path),
		Data:      file,
		Title:     title,
		Performer: artist,
		Caption:   d.localizer.T(i18n.KeyAudioCaption, title, artist),
	}
	// Preview payloads carry the clip URL in CoverURL unless a real cover was looked up.
	if result.CoverURL != result.DownloadURL {
		upload.ThumbnailURL = result.CoverURL
	}

	if _, err := d.transport.SendAudio(ctx, chatID, upload); err != nil {
		return fmt.Errorf("failed to upload audio: %w", err)
	}
	return nil
}

// download streams url into path, prefixing an ID3v2 tag when the stream has none.
func (d *Deliverer) download(ctx context.Context, url, path, title, artist string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download failed with status code %d", resp.StatusCode)
	}

	file, err := d.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, scratchFilePerm)
	if err != nil {
		return fmt.Errorf("failed to create scratch file: %w", err)
	}

	body := bufio.NewReader(resp.Body)
	if err := writeTagIfMissing(file, body, title, artist); err != nil {
		_ = file.Close()
		return err
	}

	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write scratch file: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close scratch file: %w", err)
	}
	return nil
}

func writeTagIfMissing(w io.Writer, body *bufio.Reader, title, artist string) error {
	head, err := body.Peek(len(id3Magic))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read download stream: %w", err)
	}
	if len(head) == 0 {
		return errors.New("download stream is empty")
	}
	if bytes.Equal(head, id3Magic) {
		return nil
	}

	tag := id3v2.NewEmptyTag()
	tag.SetVersion(id3Version)
	tag.SetDefaultEncoding(id3v2.EncodingUTF16)
	tag.SetTitle(title)
	tag.SetArtist(artist)

	if _, err := tag.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write id3 tag: %w", err)
	}
	return nil
}

func (d *Deliverer) removeScratch(path string) {
	if err := d.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("Failed to remove scratch file", zap.String("path", path), zap.Error(err))
	}
}
