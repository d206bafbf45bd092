package testsupport

import (
	"context"
	"testing"

	"mailroom/internal/config"
	"mailroom/internal/queue"
	"mailroom/internal/rules"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenRules opens a rules.Store for tests and registers cleanup.
func MustOpenRules(t testing.TB, cfg *config.Config) *rules.Store {
	t.Helper()

	store, err := rules.Open(cfg)
	if err != nil {
		t.Fatalf("rules.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewDocument creates a staged document item for tests using the provided store.
func NewDocument(t testing.TB, store *queue.Store, stagedPath, filename string) *queue.Item {
	t.Helper()

	item, err := store.NewDocument(context.Background(), queue.NewDocumentParams{
		StagedPath:       stagedPath,
		OriginalFilename: filename,
		Title:            filename,
	})
	if err != nil {
		t.Fatalf("store.NewDocument: %v", err)
	}
	return item
}

// NewAccount creates an enabled IMAP account for tests.
func NewAccount(t testing.TB, store *rules.Store, name string) *rules.Account {
	t.Helper()

	account, err := store.AddAccount(context.Background(), &rules.Account{
		Name:     name,
		Server:   "imap.example.com",
		Port:     993,
		Security: rules.SecuritySSL,
		Username: name + "@example.com",
		Password: "secret",
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("store.AddAccount: %v", err)
	}
	return account
}
