package ingest_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emersion/go-imap/v2"

	"mailroom/internal/ingest"
	"mailroom/internal/mail"
	"mailroom/internal/rules"
	"mailroom/internal/testsupport"
)

type fakeMailbox struct {
	messages     []*mail.Message
	failFolders  map[string]bool
	onFetch      func()
	selected     string
	searched     int
	addedFlags   []imap.Flag
	consumedUIDs []imap.UID
	closed       bool
}

func (f *fakeMailbox) SelectFolder(_ context.Context, folder string) error {
	if f.failFolders[folder] {
		return errors.New("no such folder")
	}
	f.selected = folder
	return nil
}

func (f *fakeMailbox) ListFolders(context.Context) ([]string, error) {
	return []string{"INBOX"}, nil
}

func (f *fakeMailbox) Search(context.Context, *imap.SearchCriteria) ([]imap.UID, error) {
	f.searched++
	uids := make([]imap.UID, 0, len(f.messages))
	for _, msg := range f.messages {
		uids = append(uids, msg.UID)
	}
	return uids, nil
}

func (f *fakeMailbox) Fetch(context.Context, []imap.UID) ([]*mail.Message, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.messages, nil
}

func (f *fakeMailbox) AddFlags(_ context.Context, uids []imap.UID, flags ...imap.Flag) error {
	f.addedFlags = append(f.addedFlags, flags...)
	f.consumedUIDs = append(f.consumedUIDs, uids...)
	return nil
}

func (f *fakeMailbox) Move(_ context.Context, uids []imap.UID, _ string) error {
	f.consumedUIDs = append(f.consumedUIDs, uids...)
	return nil
}

func (f *fakeMailbox) Delete(_ context.Context, uids []imap.UID) error {
	f.consumedUIDs = append(f.consumedUIDs, uids...)
	return nil
}

func (f *fakeMailbox) Close() error {
	f.closed = true
	return nil
}

func fixedDialer(mbox mail.Mailbox) ingest.Dialer {
	return func(rules.Account, *slog.Logger) (mail.Mailbox, error) {
		return mbox, nil
	}
}

func sampleMessage() *mail.Message {
	return &mail.Message{
		UID:      7,
		Subject:  "March invoice",
		From:     "billing@example.com",
		FromName: "ACME Billing",
		Attachments: []mail.Attachment{
			{Filename: "invoice.pdf", Data: []byte("%PDF-1.4 content")},
			{Filename: "notes.txt", Data: []byte("plain notes")},
		},
	}
}

func TestHandleAccountStagesMatchingAttachments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ruleStore := testsupport.MustOpenRules(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	account := testsupport.NewAccount(t, ruleStore, "personal")
	rule := rules.NewRule(account.ID, "invoices")
	rule.FilterAttachmentFilename = "*.pdf"
	rule.AssignCorrespondentFrom = rules.CorrespondentFromEmail
	rule.AssignTags = []string{"mail"}
	if _, err := ruleStore.AddRule(ctx, &rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	mbox := &fakeMailbox{messages: []*mail.Message{sampleMessage()}}
	handler := ingest.NewHandler(cfg, ruleStore, store, nil, ingest.WithDialer(fixedDialer(mbox)))

	staged, err := handler.HandleAccounts(ctx)
	if err != nil {
		t.Fatalf("HandleAccounts: %v", err)
	}
	if staged != 1 {
		t.Fatalf("expected 1 staged document, got %d", staged)
	}
	if mbox.selected != "INBOX" {
		t.Fatalf("expected INBOX selected, got %q", mbox.selected)
	}
	if !mbox.closed {
		t.Fatal("expected mailbox closed")
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 queue item, got %d", len(items))
	}
	item := items[0]
	if item.OriginalFilename != "invoice.pdf" {
		t.Fatalf("txt attachment should have been filtered: %+v", item)
	}
	if item.Title != "March invoice" || item.Correspondent != "billing@example.com" {
		t.Fatalf("assignment not applied: %+v", item)
	}
	if len(item.Tags) != 1 || item.Tags[0] != "mail" {
		t.Fatalf("tags not applied: %v", item.Tags)
	}
	if filepath.Dir(item.StagedPath) != cfg.Paths.ConsumeDir {
		t.Fatalf("staged outside consume dir: %s", item.StagedPath)
	}
	data, err := os.ReadFile(item.StagedPath)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF-1.4") {
		t.Fatalf("unexpected staged payload: %q", data)
	}

	// Default mark-read action runs only for the consumed message.
	if len(mbox.addedFlags) != 1 || mbox.addedFlags[0] != imap.FlagSeen {
		t.Fatalf("expected seen flag stored, got %v", mbox.addedFlags)
	}
	if len(mbox.consumedUIDs) != 1 || mbox.consumedUIDs[0] != 7 {
		t.Fatalf("expected uid 7 consumed, got %v", mbox.consumedUIDs)
	}

	correspondents, err := ruleStore.ListCorrespondents(ctx)
	if err != nil {
		t.Fatalf("ListCorrespondents: %v", err)
	}
	if len(correspondents) != 1 || correspondents[0].Name != "billing@example.com" {
		t.Fatalf("correspondent not recorded: %+v", correspondents)
	}
}

func TestHandleAccountDeduplicatesAcrossPolls(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ruleStore := testsupport.MustOpenRules(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	account := testsupport.NewAccount(t, ruleStore, "personal")
	rule := rules.NewRule(account.ID, "invoices")
	rule.FilterAttachmentFilename = "*.pdf"
	if _, err := ruleStore.AddRule(ctx, &rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	mbox := &fakeMailbox{messages: []*mail.Message{sampleMessage()}}
	handler := ingest.NewHandler(cfg, ruleStore, store, nil, ingest.WithDialer(fixedDialer(mbox)))

	if _, err := handler.HandleAccounts(ctx); err != nil {
		t.Fatalf("first poll: %v", err)
	}
	if _, err := handler.HandleAccounts(ctx); err != nil {
		t.Fatalf("second poll: %v", err)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected dedupe to keep 1 item, got %d", len(items))
	}
}

func TestHandleAccountIsolatesRuleFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ruleStore := testsupport.MustOpenRules(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	account := testsupport.NewAccount(t, ruleStore, "personal")

	broken := rules.NewRule(account.ID, "broken")
	broken.SortOrder = 1
	broken.Folder = "Missing"
	if _, err := ruleStore.AddRule(ctx, &broken); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	working := rules.NewRule(account.ID, "working")
	working.SortOrder = 2
	working.FilterAttachmentFilename = "*.pdf"
	if _, err := ruleStore.AddRule(ctx, &working); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	mbox := &fakeMailbox{
		messages:    []*mail.Message{sampleMessage()},
		failFolders: map[string]bool{"Missing": true},
	}
	handler := ingest.NewHandler(cfg, ruleStore, store, nil, ingest.WithDialer(fixedDialer(mbox)))

	staged, err := handler.HandleAccounts(ctx)
	if err != nil {
		t.Fatalf("HandleAccounts: %v", err)
	}
	if staged != 1 {
		t.Fatalf("expected working rule to stage 1 document, got %d", staged)
	}
}

func TestHandleAccountSkipsUnsupportedAttachments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ruleStore := testsupport.MustOpenRules(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	account := testsupport.NewAccount(t, ruleStore, "personal")
	rule := rules.NewRule(account.ID, "sweep")
	rule.Action = rules.ActionDelete
	if _, err := ruleStore.AddRule(ctx, &rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	binary := &mail.Message{
		UID:     9,
		Subject: "Firmware build",
		From:    "ci@example.com",
		Attachments: []mail.Attachment{
			{Filename: "firmware.bin", Data: []byte{0x7f, 0x13, 0x37, 0x00, 0xfe, 0xed, 0xfa, 0xce}},
		},
	}
	mbox := &fakeMailbox{messages: []*mail.Message{binary}}
	handler := ingest.NewHandler(cfg, ruleStore, store, nil, ingest.WithDialer(fixedDialer(mbox)))

	staged, err := handler.HandleAccounts(ctx)
	if err != nil {
		t.Fatalf("HandleAccounts: %v", err)
	}
	if staged != 0 {
		t.Fatalf("unsupported attachment should not be staged, got %d", staged)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty queue, got %+v", items)
	}

	// The message produced no document, so the delete action must not
	// touch it.
	if len(mbox.consumedUIDs) != 0 {
		t.Fatalf("expected no consumed messages, got %v", mbox.consumedUIDs)
	}
}

func TestHandleAccountFilesWithoutCorrespondentOnStoreError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ruleStore := testsupport.MustOpenRules(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	account := testsupport.NewAccount(t, ruleStore, "personal")
	rule := rules.NewRule(account.ID, "invoices")
	rule.FilterAttachmentFilename = "*.pdf"
	rule.AssignCorrespondentFrom = rules.CorrespondentFromEmail
	if _, err := ruleStore.AddRule(ctx, &rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	mbox := &fakeMailbox{
		messages: []*mail.Message{sampleMessage()},
		// Close the rules store mid-poll so recording the correspondent
		// fails after the rules were already read.
		onFetch: func() { _ = ruleStore.Close() },
	}
	handler := ingest.NewHandler(cfg, ruleStore, store, nil, ingest.WithDialer(fixedDialer(mbox)))

	staged, err := handler.HandleAccounts(ctx)
	if err != nil {
		t.Fatalf("HandleAccounts: %v", err)
	}
	if staged != 1 {
		t.Fatalf("expected document staged despite correspondent failure, got %d", staged)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 queue item, got %d", len(items))
	}
	if items[0].Correspondent != "" {
		t.Fatalf("expected empty correspondent, got %q", items[0].Correspondent)
	}
}

func TestHandleAccountsSkipsDisabledAccounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ruleStore := testsupport.MustOpenRules(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	account := testsupport.NewAccount(t, ruleStore, "dormant")
	account.Enabled = false
	if err := ruleStore.UpdateAccount(ctx, account); err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	rule := rules.NewRule(account.ID, "invoices")
	if _, err := ruleStore.AddRule(ctx, &rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	dialed := false
	handler := ingest.NewHandler(cfg, ruleStore, store, nil, ingest.WithDialer(
		func(rules.Account, *slog.Logger) (mail.Mailbox, error) {
			dialed = true
			return &fakeMailbox{}, nil
		}))

	staged, err := handler.HandleAccounts(ctx)
	if err != nil {
		t.Fatalf("HandleAccounts: %v", err)
	}
	if staged != 0 || dialed {
		t.Fatalf("disabled account should not be polled (staged=%d dialed=%v)", staged, dialed)
	}
}
