package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mailroom/internal/config"
	"mailroom/internal/ingest"
	"mailroom/internal/logging"
	"mailroom/internal/notifications"
)

// mailPoller runs mail ingestion on a fixed interval and on demand.
type mailPoller struct {
	cfg      *config.Config
	logger   *slog.Logger
	handler  *ingest.Handler
	notifier notifications.Service

	pollInterval time.Duration
	trigger      chan struct{}

	mu      sync.Mutex
	running bool
	polling bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newMailPoller(cfg *config.Config, handler *ingest.Handler, notifier notifications.Service, logger *slog.Logger) *mailPoller {
	poll := time.Duration(cfg.IMAP.PollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Minute
	}

	pollerLogger := logger
	if pollerLogger == nil {
		pollerLogger = logging.NewNop()
	}

	return &mailPoller{
		cfg:          cfg,
		logger:       pollerLogger.With(logging.String(logging.FieldComponent, "mail-poller")),
		handler:      handler,
		notifier:     notifier,
		pollInterval: poll,
		trigger:      make(chan struct{}, 1),
	}
}

func (p *mailPoller) Start(ctx context.Context) error {
	if p == nil {
		return errors.New("mail poller unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("mail poller already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.ctx = runCtx
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go p.loop()
	return nil
}

func (p *mailPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// TriggerNow requests an immediate poll. A poll already in flight absorbs
// the request.
func (p *mailPoller) TriggerNow() error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return errors.New("mail poller is not running")
	}
	select {
	case p.trigger <- struct{}{}:
	default:
	}
	return nil
}

func (p *mailPoller) loop() {
	defer p.wg.Done()

	p.poll()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		case <-p.trigger:
			p.poll()
		}
	}
}

func (p *mailPoller) poll() {
	ctx := p.ctx
	if ctx == nil {
		return
	}

	p.mu.Lock()
	if p.polling {
		p.mu.Unlock()
		return
	}
	p.polling = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.polling = false
		p.mu.Unlock()
	}()

	started := time.Now()
	staged, err := p.handler.HandleAccounts(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Warn("mail poll finished with errors",
			logging.Error(err),
			logging.Int("staged_count", staged),
			logging.String(logging.FieldEventType, "mail_poll_failed"),
			logging.String(logging.FieldErrorHint, "check account credentials and server reachability"),
		)
		if p.notifier != nil {
			if notifyErr := p.notifier.NotifyError(ctx, err, "mail poll"); notifyErr != nil && !errors.Is(notifyErr, context.Canceled) {
				p.logger.Debug("poll error notification failed", logging.Error(notifyErr))
			}
		}
		return
	}
	if staged > 0 {
		p.logger.Info("mail poll staged new documents",
			logging.Int("staged_count", staged),
			logging.Duration("elapsed", time.Since(started)),
			logging.String(logging.FieldEventType, "mail_poll_completed"),
		)
	} else {
		p.logger.Debug("mail poll found nothing new", logging.Duration("elapsed", time.Since(started)))
	}
}
