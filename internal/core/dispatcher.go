package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trackrelay/internal/chat"
	"trackrelay/internal/i18n"
	"trackrelay/pkg/musiclink"
	"trackrelay/pkg/text"
)

// TrackResolver resolves a track reference into a downloadable result.
type TrackResolver interface {
	Resolve(ctx context.Context, ref text.TrackReference) (*musiclink.TrackResult, error)
}

// Monitor observes request handling. Implementations must be safe for concurrent use.
type Monitor interface {
	RequestStarted()
	RequestFinished(outcome string, duration time.Duration)
	RecordDelivery(outcome string)
	SetReady(ready bool)
}

type nopMonitor struct{}

func (nopMonitor) RequestStarted()                       {}
func (nopMonitor) RequestFinished(string, time.Duration) {}
func (nopMonitor) RecordDelivery(string)                 {}
func (nopMonitor) SetReady(bool)                         {}

// Dispatcher handles messages from a chat frontend, one goroutine per track request.
type Dispatcher struct {
	frontend  chat.Frontend
	resolver  TrackResolver
	deliverer *Deliverer
	monitor   Monitor
	parser    *text.Parser
	localizer *i18n.Localizer
	logger    *zap.Logger

	ctx      context.Context
	inFlight sync.WaitGroup
}

// NewDispatcher creates a new dispatcher with the provided chat frontend.
// monitor may be nil.
func NewDispatcher(
	config *Config,
	frontend chat.Frontend,
	resolver TrackResolver,
	deliverer *Deliverer,
	monitor Monitor,
	logger *zap.Logger,
) *Dispatcher {
	if monitor == nil {
		monitor = nopMonitor{}
	}

	return &Dispatcher{
		frontend:  frontend,
		resolver:  resolver,
		deliverer: deliverer,
		monitor:   monitor,
		parser:    text.NewParser(),
		localizer: i18n.NewLocalizer(config.App.Language),
		logger:    logger,
		ctx:       context.Background(),
	}
}

// Start starts the chat frontend and blocks while listening for messages.
// In-flight requests are awaited before it returns.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("Starting message dispatcher")
	d.ctx = ctx

	if err := d.frontend.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chat frontend: %w", err)
	}

	d.monitor.SetReady(true)
	defer d.monitor.SetReady(false)

	err := d.frontend.Listen(ctx, d.handleMessage)

	d.logger.Info("Waiting for in-flight requests")
	d.inFlight.Wait()

	if err != nil {
		return fmt.Errorf("chat frontend stopped: %w", err)
	}
	return nil
}

func (d *Dispatcher) handleMessage(msg *chat.Message) {
	d.logger.Debug("Received message",
		zap.String("messageID", msg.ID),
		zap.String("sender", msg.SenderName),
		zap.String("text", msg.Text),
	)

	if !d.parser.ContainsTrackLink(msg.Text) {
		return
	}

	d.inFlight.Add(1)
	go func() {
		defer d.inFlight.Done()
		d.Process(d.ctx, msg)
	}()
}

// Process handles one message end to end and reports how it ended.
// It never panics and never returns an error; every failure is shown in the chat.
func (d *Dispatcher) Process(ctx context.Context, msg *chat.Message) (outcome RequestOutcome) {
	ref, ok := d.parser.Detect(msg.Text)
	if !ok {
		return OutcomeNoMatch
	}

	start := time.Now()
	logger := d.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("chat_id", msg.ChatID),
		zap.String("track_id", ref.TrackID),
	)
	logger.Info("Processing track request", zap.String("source_url", ref.SourceURL))

	d.monitor.RequestStarted()
	defer func() {
		d.monitor.RequestFinished(outcome.String(), time.Since(start))
		logger.Info("Finished track request",
			zap.Stringer("outcome", outcome),
			zap.Duration("duration", time.Since(start)))
	}()

	var status *StatusNotifier
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic while processing track request",
				zap.Any("panic", r), zap.Stack("stack"))
			d.showUnexpectedError(ctx, logger, msg.ChatID, status)
			outcome = OutcomeError
		}
	}()

	status, err := NewStatusNotifier(ctx, d.frontend, d.localizer, msg.ChatID, ref.SourceURL)
	if err != nil {
		logger.Error("Failed to create status message", zap.Error(err))
		d.showUnexpectedError(ctx, logger, msg.ChatID, nil)
		return OutcomeError
	}

	result, err := d.resolver.Resolve(ctx, ref)
	if err != nil {
		logger.Warn("Failed to resolve track", zap.Error(err))
		if showErr := status.ShowResolutionFailure(ctx, err.Error()); showErr != nil {
			logger.Error("Failed to show resolution failure", zap.Error(showErr))
			d.showUnexpectedError(ctx, logger, msg.ChatID, status)
			return OutcomeError
		}
		return OutcomeResolutionFailed
	}

	delivery, err := d.deliverer.Deliver(ctx, msg.ChatID, ref, result, status)
	if err != nil {
		logger.Error("Failed to update status message", zap.Error(err))
		d.showUnexpectedError(ctx, logger, msg.ChatID, status)
		return OutcomeError
	}

	d.monitor.RecordDelivery(delivery.String())
	return outcomeFromDelivery(delivery)
}

// showUnexpectedError sends the generic error as a new message.
func (d *Dispatcher) showUnexpectedError(ctx context.Context, logger *zap.Logger, chatID string, status *StatusNotifier) {
	if status != nil && !status.State().IsTerminal() {
		if err := status.ShowError(ctx); err != nil {
			logger.Error("Failed to send error message", zap.Error(err))
		}
		return
	}

	if _, err := d.frontend.SendText(ctx, chatID, d.localizer.T(i18n.KeyErrorGeneric)); err != nil {
		logger.Error("Failed to send error message", zap.Error(err))
	}
}
