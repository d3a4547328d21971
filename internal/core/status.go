package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"trackrelay/internal/i18n"
)

// ErrInvalidTransition is returned for a status change the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// StatusTransport is the part of a chat frontend the status message needs.
type StatusTransport interface {
	SendText(ctx context.Context, chatID, text string) (string, error)
	EditMessage(ctx context.Context, chatID, messageID, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID string) error
}

// StatusNotifier owns the single status message of one request.
// Every transition is validated before any chat call is made; a failed chat
// call leaves the state unchanged.
type StatusNotifier struct {
	transport StatusTransport
	localizer *i18n.Localizer
	chatID    string
	messageID string

	mutex sync.Mutex
	state StatusState
}

// NewStatusNotifier sends the processing notice for sourceURL and returns the
// notifier in the Created state.
func NewStatusNotifier(
	ctx context.Context,
	transport StatusTransport,
	localizer *i18n.Localizer,
	chatID, sourceURL string,
) (*StatusNotifier, error) {
	messageID, err := transport.SendText(ctx, chatID, localizer.T(i18n.KeyStatusProcessing, sourceURL))
	if err != nil {
		return nil, fmt.Errorf("failed to send status message: %w", err)
	}

	return &StatusNotifier{
		transport: transport,
		localizer: localizer,
		chatID:    chatID,
		messageID: messageID,
		state:     StatusCreated,
	}, nil
}

// State returns the current state.
func (s *StatusNotifier) State() StatusState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// MarkDownloading shows which track is being downloaded.
func (s *StatusNotifier) MarkDownloading(ctx context.Context, title, artist string) error {
	return s.transition(StatusDownloading, func() error {
		return s.transport.EditMessage(ctx, s.chatID, s.messageID,
			s.localizer.T(i18n.KeyStatusDownloading, title, artist))
	})
}

// Delete removes the status message after a successful upload.
func (s *StatusNotifier) Delete(ctx context.Context) error {
	return s.transition(StatusDeleted, func() error {
		return s.transport.DeleteMessage(ctx, s.chatID, s.messageID)
	})
}

// ShowFallback replaces the status with the direct download link.
func (s *StatusNotifier) ShowFallback(ctx context.Context, downloadURL string) error {
	return s.transition(StatusFallbackShown, func() error {
		return s.transport.EditMessage(ctx, s.chatID, s.messageID,
			s.localizer.T(i18n.KeyStatusFallback, downloadURL))
	})
}

// ShowResolutionFailure replaces the status with the resolution failure.
func (s *StatusNotifier) ShowResolutionFailure(ctx context.Context, cause string) error {
	return s.transition(StatusResolutionFailedShown, func() error {
		return s.transport.EditMessage(ctx, s.chatID, s.messageID,
			s.localizer.T(i18n.KeyErrorResolution, cause))
	})
}

// ShowError sends the generic error as a new message. The status message is left as is.
func (s *StatusNotifier) ShowError(ctx context.Context) error {
	return s.transition(StatusErrorShown, func() error {
		_, err := s.transport.SendText(ctx, s.chatID, s.localizer.T(i18n.KeyErrorGeneric))
		return err
	})
}

func (s *StatusNotifier) transition(next StatusState, call func() error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.state.canTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
	}

	if err := call(); err != nil {
		return fmt.Errorf("status %s -> %s: %w", s.state, next, err)
	}

	s.state = next
	return nil
}
