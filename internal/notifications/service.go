package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mailroom/internal/config"
)

const userAgent = "Mailroom-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyDocumentFiled(ctx context.Context, title, finalPath string) error
	NotifyDocumentReview(ctx context.Context, title, reason string) error
	NotifyAccountError(ctx context.Context, account string, err error) error
	NotifyQueueStarted(ctx context.Context, count int) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	svc := &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		documents: cfg.Notifications.Documents,
		queue:     cfg.Notifications.Queue,
		errors:    cfg.Notifications.Errors,
	}
	return svc
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	documents bool
	queue     bool
	errors    bool
}

func (n *ntfyService) NotifyDocumentFiled(ctx context.Context, title, finalPath string) error {
	if !n.documents {
		return nil
	}
	title = strings.TrimSpace(title)
	finalPath = strings.TrimSpace(finalPath)
	message := fmt.Sprintf("Filed: %s", title)
	if finalPath != "" {
		message = fmt.Sprintf("%s\nFile: %s", message, finalPath)
	}
	data := payload{
		title:   "Mailroom - Document Filed",
		message: message,
		tags:    []string{"mailroom", "document", "filed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDocumentReview(ctx context.Context, title, reason string) error {
	if !n.documents {
		return nil
	}
	title = strings.TrimSpace(title)
	reason = strings.TrimSpace(reason)
	data := payload{
		title:    "Mailroom - Needs Review",
		message:  fmt.Sprintf("Review needed: %s\n%s", title, reason),
		tags:     []string{"mailroom", "document", "review"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAccountError(ctx context.Context, account string, accountErr error) error {
	if !n.errors {
		return nil
	}
	account = strings.TrimSpace(account)
	data := payload{
		title:    "Mailroom - Account Error",
		message:  fmt.Sprintf("Account %s failed: %v", account, accountErr),
		tags:     []string{"mailroom", "account", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, count int) error {
	if !n.queue {
		return nil
	}
	data := payload{
		title:   "Mailroom - Queue Started",
		message: fmt.Sprintf("Started processing queue with %d documents", count),
		tags:    []string{"mailroom", "queue", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.queue {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title string
	var message string
	if failed == 0 {
		title = "Mailroom - Queue Complete"
		message = fmt.Sprintf("Queue processing complete: %d documents filed in %s", processed, durationText)
	} else {
		title = "Mailroom - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d filed, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"mailroom", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, notifyErr error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	contextLabel = strings.TrimSpace(contextLabel)
	message := fmt.Sprintf("Error: %v", notifyErr)
	if contextLabel != "" {
		message = fmt.Sprintf("Error in %s: %v", contextLabel, notifyErr)
	}
	data := payload{
		title:    "Mailroom - Error",
		message:  message,
		tags:     []string{"mailroom", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Mailroom - Test",
		message: "Test notification from mailroom",
		tags:    []string{"mailroom", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyDocumentFiled(context.Context, string, string) error { return nil }

func (noopService) NotifyDocumentReview(context.Context, string, string) error { return nil }

func (noopService) NotifyAccountError(context.Context, string, error) error { return nil }

func (noopService) NotifyQueueStarted(context.Context, int) error { return nil }

func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }
