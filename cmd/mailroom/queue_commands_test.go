package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"mailroom/internal/testsupport"
)

func TestQueueStatusEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, stdout, "Queue is empty")
}

func TestQueueStatusShowsCounts(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewDocument(t, env.store, "/tmp/consume/a.pdf", "a.pdf")

	stdout, _, err := runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, stdout, "pending")
	requireContains(t, stdout, "1")
}

func TestQueueListViaDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewDocument(t, env.store, "/tmp/consume/invoice.pdf", "invoice.pdf")

	stdout, _, err := runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, stdout, "invoice.pdf")
	requireContains(t, stdout, "pending")
}

func TestQueueListDirectStoreFallback(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewDocument(t, env.store, "/tmp/consume/receipt.pdf", "receipt.pdf")

	deadSocket := filepath.Join(t.TempDir(), "missing.sock")
	stdout, _, err := runCLI(t, []string{"queue", "list"}, deadSocket, env.configPath)
	if err != nil {
		t.Fatalf("queue list (direct): %v", err)
	}
	requireContains(t, stdout, "receipt.pdf")
}

func TestQueueListJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewDocument(t, env.store, "/tmp/consume/a.pdf", "a.pdf")

	stdout, _, err := runCLI(t, []string{"queue", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	requireContains(t, stdout, `"originalFilename": "a.pdf"`)
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	deadSocket := filepath.Join(t.TempDir(), "missing.sock")
	_, _, err := runCLI(t, []string{"queue", "list", "--status", "bogus"}, deadSocket, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown queue status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestQueueShow(t *testing.T) {
	env := setupCLITestEnv(t)
	item := testsupport.NewDocument(t, env.store, "/tmp/consume/a.pdf", "a.pdf")

	stdout, _, err := runCLI(t, []string{"queue", "show", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, stdout, fmt.Sprintf("ID:            %d", item.ID))
	requireContains(t, stdout, "Filename:      a.pdf")
}

func TestQueueShowNotFound(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "show", "9999"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestQueueRetrySingleItem(t *testing.T) {
	env := setupCLITestEnv(t)
	item := testsupport.NewDocument(t, env.store, "/tmp/consume/a.pdf", "a.pdf")
	item.SetFailed("classification failed")
	if err := env.store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"queue", "retry", fmt.Sprintf("%d", item.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, stdout, fmt.Sprintf("Item %d reset for retry", item.ID))
}

func TestQueueRetryAll(t *testing.T) {
	env := setupCLITestEnv(t)
	item := testsupport.NewDocument(t, env.store, "/tmp/consume/a.pdf", "a.pdf")
	item.SetFailed("classification failed")
	if err := env.store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, stdout, "Retried 1 failed items")
}

func TestQueueClear(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewDocument(t, env.store, "/tmp/consume/a.pdf", "a.pdf")

	stdout, _, err := runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, stdout, "Cleared 1 queue items")
}

func TestQueueClearRejectsConflictingFlags(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "clear", "--completed", "--failed"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "only one of") {
		t.Fatalf("expected conflicting flag error, got %v", err)
	}
}

func TestQueueHealth(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewDocument(t, env.store, "/tmp/consume/a.pdf", "a.pdf")

	stdout, _, err := runCLI(t, []string{"queue", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, stdout, "Total: 1")
	requireContains(t, stdout, "Pending: 1")
}

func TestQueueResetStuck(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"queue", "reset-stuck"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue reset-stuck: %v", err)
	}
	requireContains(t, stdout, "Reset 0 items")
}
