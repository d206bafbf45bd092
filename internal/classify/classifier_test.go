package classify_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gabriel-vasile/mimetype"

	"mailroom/internal/classify"
	"mailroom/internal/queue"
	"mailroom/internal/testsupport"
)

func TestClassifierDetectsPDF(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	staged := filepath.Join(cfg.Paths.ConsumeDir, "invoice.pdf")
	testsupport.WritePDF(t, staged)
	item := testsupport.NewDocument(t, store, staged, "invoice.pdf")

	classifier := classify.NewClassifier(cfg, store, nil)
	if err := classifier.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := classifier.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.MimeType != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", item.MimeType)
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("expected completed progress, got %f", item.ProgressPercent)
	}
}

func TestClassifierDetectsPlainText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	staged := filepath.Join(cfg.Paths.ConsumeDir, "notes.txt")
	if err := os.WriteFile(staged, []byte("meter reading 42\n"), 0o644); err != nil {
		t.Fatalf("write staged file: %v", err)
	}
	item := testsupport.NewDocument(t, store, staged, "notes.txt")

	classifier := classify.NewClassifier(cfg, store, nil)
	if err := classifier.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.MimeType != "text/plain" {
		t.Fatalf("expected text/plain, got %q", item.MimeType)
	}
}

func TestClassifierRoutesUnsupportedTypeToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	staged := filepath.Join(cfg.Paths.ConsumeDir, "archive.zip")
	if err := os.WriteFile(staged, []byte("PK\x03\x04zippayload"), 0o644); err != nil {
		t.Fatalf("write staged file: %v", err)
	}
	item := testsupport.NewDocument(t, store, staged, "archive.zip")

	classifier := classify.NewClassifier(cfg, store, nil)
	err := classifier.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected unsupported type error")
	}
	if queue.FailureStatus(err) != queue.StatusReview {
		t.Fatalf("expected review failure status, got %s", queue.FailureStatus(err))
	}
	if !strings.Contains(err.Error(), "unsupported document type") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestClassifierRejectsMissingAndEmptyFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	classifier := classify.NewClassifier(cfg, store, nil)

	missing := testsupport.NewDocument(t, store, filepath.Join(cfg.Paths.ConsumeDir, "gone.pdf"), "gone.pdf")
	if err := classifier.Execute(context.Background(), missing); err == nil {
		t.Fatal("expected error for missing staged file")
	} else if queue.FailureStatus(err) != queue.StatusReview {
		t.Fatalf("missing file should route to review, got %s", queue.FailureStatus(err))
	}

	emptyPath := filepath.Join(cfg.Paths.ConsumeDir, "empty.pdf")
	if err := os.WriteFile(emptyPath, nil, 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}
	empty := testsupport.NewDocument(t, store, emptyPath, "empty.pdf")
	if err := classifier.Execute(context.Background(), empty); err == nil {
		t.Fatal("expected error for empty staged file")
	}
}

func TestClassifierHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	classifier := classify.NewClassifier(cfg, store, nil)
	if health := classifier.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy classifier: %+v", health)
	}

	cfg.Paths.ConsumeDir = filepath.Join(testsupport.BaseDir(cfg), "does-not-exist")
	if health := classifier.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy classifier for missing consume dir")
	}
}

func TestMatchSupported(t *testing.T) {
	if got := classify.MatchSupported(mimetype.Detect([]byte("%PDF-1.4 content"))); got != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", got)
	}
	if got := classify.MatchSupported(mimetype.Detect([]byte{0x7f, 0x13, 0x37, 0x00, 0xfe, 0xed})); got != "" {
		t.Fatalf("expected unsupported binary to match nothing, got %q", got)
	}
	if got := classify.MatchSupported(nil); got != "" {
		t.Fatalf("expected nil detection to match nothing, got %q", got)
	}
}
