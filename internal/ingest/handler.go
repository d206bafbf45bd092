package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/gabriel-vasile/mimetype"

	"mailroom/internal/classify"
	"mailroom/internal/config"
	"mailroom/internal/fileutil"
	"mailroom/internal/logging"
	"mailroom/internal/mail"
	"mailroom/internal/queue"
	"mailroom/internal/rules"
)

// Dialer opens a mailbox connection for an account. Production uses
// mail.Dial; tests inject fakes.
type Dialer func(account rules.Account, logger *slog.Logger) (mail.Mailbox, error)

// Handler drives rule execution across accounts.
type Handler struct {
	cfg       *config.Config
	ruleStore *rules.Store
	store     *queue.Store
	logger    *slog.Logger
	dial      Dialer
	now       func() time.Time
}

// Option customizes a Handler.
type Option func(*Handler)

// WithDialer overrides how mailbox connections are opened.
func WithDialer(dial Dialer) Option {
	return func(h *Handler) {
		h.dial = dial
	}
}

// WithClock overrides the time source used for age filters.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler builds an ingest handler over the given stores.
func NewHandler(cfg *config.Config, ruleStore *rules.Store, store *queue.Store, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	handler := &Handler{
		cfg:       cfg,
		ruleStore: ruleStore,
		store:     store,
		logger:    logger.With(logging.FieldComponent, "ingest"),
		now:       time.Now,
	}
	handler.dial = func(account rules.Account, logger *slog.Logger) (mail.Mailbox, error) {
		return mail.Dial(account, logger)
	}
	for _, opt := range opts {
		opt(handler)
	}
	return handler
}

// HandleAccounts runs every enabled account and returns the number of
// documents staged. Account failures are collected rather than aborting the
// poll.
func (h *Handler) HandleAccounts(ctx context.Context) (int, error) {
	accounts, err := h.ruleStore.ListAccounts(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}

	total := 0
	var errs []error
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		staged, err := h.HandleAccount(ctx, *account)
		total += staged
		if err != nil {
			h.logger.Error("account poll failed", logging.FieldAccount, account.Name, logging.Error(err))
			errs = append(errs, fmt.Errorf("account %s: %w", account.Name, err))
		}
	}
	return total, errors.Join(errs...)
}

// HandleAccount connects to one account and runs its rules in sort order.
// A failing rule is logged and skipped so the remaining rules still run.
func (h *Handler) HandleAccount(ctx context.Context, account rules.Account) (int, error) {
	ruleList, err := h.ruleStore.RulesForAccount(ctx, account.ID)
	if err != nil {
		return 0, fmt.Errorf("rules for account: %w", err)
	}
	if len(ruleList) == 0 {
		h.logger.Debug("account has no rules", logging.FieldAccount, account.Name)
		return 0, nil
	}

	mbox, err := h.dial(account, h.logger)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer mbox.Close()

	total := 0
	for _, rule := range ruleList {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		staged, err := h.handleRule(ctx, mbox, account, *rule)
		total += staged
		if err != nil {
			h.logger.Error("rule failed",
				logging.FieldAccount, account.Name,
				logging.FieldRule, rule.Name,
				logging.Error(err))
			continue
		}
		if staged > 0 {
			h.logger.Info("rule staged documents",
				logging.FieldAccount, account.Name,
				logging.FieldRule, rule.Name,
				"documents", staged)
		}
	}
	return total, nil
}

func (h *Handler) handleRule(ctx context.Context, mbox mail.Mailbox, account rules.Account, rule rules.Rule) (int, error) {
	action, err := mail.ActionFor(rule)
	if err != nil {
		return 0, err
	}

	if err := mbox.SelectFolder(ctx, rule.Folder); err != nil {
		return 0, err
	}

	criteria := mail.BuildCriteria(rule, h.now())
	action.Criteria(criteria)

	uids, err := mbox.Search(ctx, criteria)
	if err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		return 0, nil
	}
	h.logger.Debug("rule matched messages",
		logging.FieldAccount, account.Name,
		logging.FieldRule, rule.Name,
		logging.FieldFolder, rule.Folder,
		"messages", len(uids))

	messages, err := mbox.Fetch(ctx, uids)
	if err != nil {
		return 0, err
	}

	total := 0
	var consumed []imap.UID
	for _, msg := range messages {
		staged, err := h.handleMessage(ctx, account, rule, msg)
		if err != nil {
			h.logger.Error("message failed",
				logging.FieldAccount, account.Name,
				logging.FieldRule, rule.Name,
				logging.FieldMessageUID, uint32(msg.UID),
				logging.Error(err))
			continue
		}
		total += staged
		if staged > 0 {
			consumed = append(consumed, msg.UID)
		}
	}

	if len(consumed) > 0 {
		if err := action.PostConsume(ctx, mbox, consumed); err != nil {
			return total, fmt.Errorf("post-consume: %w", err)
		}
	}
	return total, nil
}

func (h *Handler) handleMessage(ctx context.Context, account rules.Account, rule rules.Rule, msg *mail.Message) (int, error) {
	attachments := selectAttachments(rule, msg)
	if len(attachments) == 0 {
		return 0, nil
	}

	messageUID := strconv.FormatUint(uint64(msg.UID), 10)
	staged := 0
	for _, att := range attachments {
		// Sniff from the payload bytes; the declared content type is not
		// trusted. Unsupported attachments must not be staged or counted,
		// or the post-consume action would delete/move mail that produced
		// no document.
		mtype := mimetype.Detect(att.Data)
		if classify.MatchSupported(mtype) == "" {
			h.logger.Debug("skipping attachment with unsupported type",
				logging.FieldAccount, account.Name,
				logging.FieldRule, rule.Name,
				logging.FieldMessageUID, uint32(msg.UID),
				"filename", att.Filename,
				"mime_type", mtype.String())
			continue
		}

		existing, err := h.store.FindByMessage(ctx, account.Name, messageUID, att.Filename)
		if err != nil {
			return staged, err
		}
		if existing != nil {
			h.logger.Debug("attachment already staged",
				logging.FieldAccount, account.Name,
				logging.FieldMessageUID, uint32(msg.UID),
				"filename", att.Filename)
			staged++
			continue
		}

		safeName := fileutil.SanitizeFilename(att.Filename)
		stagedPath, err := fileutil.WriteStaged(h.cfg.Paths.ConsumeDir, "mailroom-*-"+safeName, att.Data)
		if err != nil {
			return staged, err
		}

		correspondent := correspondentFor(rule, msg)
		if correspondent != "" {
			if _, err := h.ruleStore.EnsureCorrespondent(ctx, correspondent); err != nil {
				// A correspondent that cannot be recorded must not block the
				// document; file it without one.
				h.logger.Error("cannot record correspondent",
					logging.FieldAccount, account.Name,
					logging.FieldRule, rule.Name,
					"correspondent", correspondent,
					logging.Error(err))
				correspondent = ""
			}
		}

		item, err := h.store.NewDocument(ctx, queue.NewDocumentParams{
			StagedPath:       stagedPath,
			OriginalFilename: att.Filename,
			Title:            titleFor(rule, msg, att.Filename),
			AccountName:      account.Name,
			RuleName:         rule.Name,
			Correspondent:    correspondent,
			Tags:             rule.AssignTags,
			MessageUID:       messageUID,
			MessageSubject:   msg.Subject,
			MessageFrom:      msg.From,
		})
		if err != nil {
			return staged, err
		}
		staged++
		h.logger.Info("document staged",
			logging.FieldItemID, item.ID,
			logging.FieldAccount, account.Name,
			logging.FieldRule, rule.Name,
			"filename", att.Filename)
	}
	return staged, nil
}
