package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mailroom/internal/notifications"
	"mailroom/internal/testsupport"
)

func TestNoopServiceWhenUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := notifications.NewService(cfg)
	if err := svc.NotifyDocumentFiled(context.Background(), "Invoice", "/archive/invoice.pdf"); err != nil {
		t.Fatalf("noop notify failed: %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop test notification failed: %v", err)
	}
}

func TestNtfyServiceSendsHeaders(t *testing.T) {
	var gotTitle, gotTags, gotPriority, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		gotPriority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	svc := notifications.NewService(cfg)

	if err := svc.NotifyDocumentReview(context.Background(), "Broken scan", "unsupported content type"); err != nil {
		t.Fatalf("NotifyDocumentReview: %v", err)
	}
	if gotTitle != "Mailroom - Needs Review" {
		t.Fatalf("unexpected title %q", gotTitle)
	}
	if gotTags != "mailroom,document,review" {
		t.Fatalf("unexpected tags %q", gotTags)
	}
	if gotPriority != "high" {
		t.Fatalf("unexpected priority %q", gotPriority)
	}
	if gotBody == "" {
		t.Fatal("expected message body")
	}
}

func TestNtfyServiceRejectsFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	svc := notifications.NewService(cfg)
	if err := svc.NotifyQueueCompleted(context.Background(), 3, 1, 2*time.Minute); err == nil {
		t.Fatal("expected error for rejected notification")
	}
}

func TestCategoryTogglesSuppressSends(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	cfg.Notifications.Documents = false
	cfg.Notifications.Queue = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(cfg)

	ctx := context.Background()
	_ = svc.NotifyDocumentFiled(ctx, "a", "b")
	_ = svc.NotifyQueueStarted(ctx, 1)
	_ = svc.NotifyError(ctx, context.Canceled, "poll")
	if hits != 0 {
		t.Fatalf("expected suppressed notifications, got %d sends", hits)
	}

	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if hits != 1 {
		t.Fatalf("test notification should bypass toggles, got %d sends", hits)
	}
}
