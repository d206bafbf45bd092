package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mailroom/internal/config"
	"mailroom/internal/ingest"
	"mailroom/internal/logging"
	"mailroom/internal/mail"
	"mailroom/internal/notifications"
	"mailroom/internal/queue"
	"mailroom/internal/rules"
	"mailroom/internal/workflow"
)

// Daemon coordinates mail polling and queue processing and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	ruleStore *rules.Store
	workflow  *workflow.Manager
	ingest    *ingest.Handler
	poller    *mailPoller
	apiServer *apiServer
	logPath   string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, ruleStore *rules.Store, logger *slog.Logger, wf *workflow.Manager, handler *ingest.Handler) (*Daemon, error) {
	if cfg == nil || store == nil || ruleStore == nil || wf == nil || handler == nil {
		return nil, errors.New("daemon requires config, stores, workflow manager, and ingest handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "mailroomd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		ruleStore: ruleStore,
		workflow:  wf,
		ingest:    handler,
		logPath:   filepath.Join(cfg.Paths.LogDir, "mailroom.log"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.poller = newMailPoller(cfg, handler, notifications.NewService(cfg), logger)

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiServer = server
	return d, nil
}

// Start launches the workflow manager, the mail poller, and the HTTP API,
// and acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mailroom daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.poller.Start(d.ctx); err != nil {
		d.workflow.Stop()
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start mail poller: %w", err)
	}
	if d.apiServer != nil {
		if err := d.apiServer.start(d.ctx); err != nil {
			d.logger.Warn("api server failed to start", logging.Error(err))
		}
	}

	d.running.Store(true)
	d.logger.Info("mailroom daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.poller.Stop()
	d.workflow.Stop()
	if count, err := d.store.FailProcessing(context.Background(), queue.DaemonStopReason); err != nil {
		d.logger.Warn("failed to mark in-flight items", logging.Error(err))
	} else if count > 0 {
		d.logger.Info("marked in-flight items failed for shutdown", logging.Int64("count", count))
	}
	if d.apiServer != nil {
		d.apiServer.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("mailroom daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	if d.ruleStore != nil {
		errs = append(errs, d.ruleStore.Close())
	}
	return errors.Join(errs...)
}

// FetchNow triggers an immediate mail poll outside the regular interval.
func (d *Daemon) FetchNow() error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	return d.poller.TriggerNow()
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// GetQueueItem fetches a single queue item by id.
func (d *Daemon) GetQueueItem(ctx context.Context, id int64) (*queue.Item, error) {
	return d.store.GetByID(ctx, id)
}

// ClearQueue removes all queue items.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed queue items.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed queue items.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// ResetStuck transitions in-flight items back to their previous stage.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed resets failed items (optionally a subset) back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	return d.store.RetryFailed(ctx, ids...)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// ListAccounts returns configured IMAP accounts.
func (d *Daemon) ListAccounts(ctx context.Context) ([]*rules.Account, error) {
	return d.ruleStore.ListAccounts(ctx, false)
}

// ListRules returns all filing rules across accounts.
func (d *Daemon) ListRules(ctx context.Context) ([]*rules.Rule, error) {
	return d.ruleStore.ListRules(ctx)
}

// TestAccount dials the account and returns its folder listing.
func (d *Daemon) TestAccount(ctx context.Context, id int64) ([]string, error) {
	account, err := d.ruleStore.AccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %d not found", id)
	}
	client, err := mail.Dial(*account, d.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", account.Address(), err)
	}
	defer client.Close()
	return client.ListFolders(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddr returns the bound HTTP API address, or empty when disabled.
func (d *Daemon) APIAddr() string {
	if d.apiServer == nil {
		return ""
	}
	return d.apiServer.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     summary,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
