package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"

	"mailroom/internal/api"
	"mailroom/internal/classify"
	"mailroom/internal/config"
	"mailroom/internal/daemon"
	"mailroom/internal/filing"
	"mailroom/internal/ingest"
	"mailroom/internal/mail"
	"mailroom/internal/queue"
	"mailroom/internal/rules"
	"mailroom/internal/testsupport"
	"mailroom/internal/workflow"
)

type idleMailbox struct{}

func (idleMailbox) SelectFolder(context.Context, string) error        { return nil }
func (idleMailbox) ListFolders(context.Context) ([]string, error)     { return []string{"INBOX"}, nil }
func (idleMailbox) Search(context.Context, *imap.SearchCriteria) ([]imap.UID, error) {
	return nil, nil
}
func (idleMailbox) Fetch(context.Context, []imap.UID) ([]*mail.Message, error) { return nil, nil }
func (idleMailbox) AddFlags(context.Context, []imap.UID, ...imap.Flag) error   { return nil }
func (idleMailbox) Move(context.Context, []imap.UID, string) error             { return nil }
func (idleMailbox) Delete(context.Context, []imap.UID) error                   { return nil }
func (idleMailbox) Close() error                                               { return nil }

func newTestDaemon(t *testing.T, cfg *config.Config, dials *atomic.Int64) (*daemon.Daemon, *queue.Store, *rules.Store) {
	t.Helper()

	store := testsupport.MustOpenStore(t, cfg)
	ruleStore := testsupport.MustOpenRules(t, cfg)

	dialer := func(rules.Account, *slog.Logger) (mail.Mailbox, error) {
		if dials != nil {
			dials.Add(1)
		}
		return idleMailbox{}, nil
	}
	handler := ingest.NewHandler(cfg, ruleStore, store, nil, ingest.WithDialer(dialer))

	manager := workflow.NewManager(cfg, store, nil)
	manager.ConfigureStages(workflow.StageSet{
		Classifier: classify.NewClassifier(cfg, store, nil),
		Filer:      filing.NewFiler(cfg, store, nil),
	})

	d, err := daemon.New(cfg, store, ruleStore, nil, manager, handler)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d, store, ruleStore
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _, _ := newTestDaemon(t, cfg, nil)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}

	status := d.Status(context.Background())
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.QueueDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("paths missing from status: %+v", status)
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("daemon still reports running after Stop")
	}
}

func TestDaemonFetchNowDialsAccounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var dials atomic.Int64
	d, _, ruleStore := newTestDaemon(t, cfg, &dials)
	testsupport.NewAccount(t, ruleStore, "billing")

	if err := d.FetchNow(); err == nil {
		t.Fatal("FetchNow should fail before Start")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.FetchNow(); err != nil {
		t.Fatalf("FetchNow: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for dials.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(25 * time.Millisecond)
	}
	if dials.Load() == 0 {
		t.Fatal("expected at least one account dial after FetchNow")
	}
}

func TestDaemonLockRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _, _ := newTestDaemon(t, cfg, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second, _, _ := newTestDaemon(t, cfg, nil)
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("second daemon instance should fail to acquire the lock")
	}
}

func TestDaemonHTTPStatusAndQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, ruleStore := newTestDaemon(t, cfg, nil)
	testsupport.NewAccount(t, ruleStore, "billing")

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("api server did not report an address")
	}

	item := testsupport.NewDocument(t, store, "/tmp/consume/invoice.pdf", "invoice.pdf")

	resp, err := http.Get(fmt.Sprintf("http://%s/api/status", addr))
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running {
		t.Fatalf("status payload not running: %+v", status)
	}
	if len(status.Accounts) != 1 || status.Accounts[0].Name != "billing" {
		t.Fatalf("accounts missing from status: %+v", status.Accounts)
	}

	queueResp, err := http.Get(fmt.Sprintf("http://%s/api/queue/%d", addr, item.ID))
	if err != nil {
		t.Fatalf("GET /api/queue/{id}: %v", err)
	}
	defer queueResp.Body.Close()
	var payload api.QueueItemResponse
	if err := json.NewDecoder(queueResp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode queue item: %v", err)
	}
	if payload.Item.ID != item.ID || payload.Item.OriginalFilename != "invoice.pdf" {
		t.Fatalf("unexpected queue payload: %+v", payload.Item)
	}

	accountsResp, err := http.Get(fmt.Sprintf("http://%s/api/accounts", addr))
	if err != nil {
		t.Fatalf("GET /api/accounts: %v", err)
	}
	defer accountsResp.Body.Close()
	var accounts api.AccountListResponse
	if err := json.NewDecoder(accountsResp.Body).Decode(&accounts); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	if len(accounts.Accounts) != 1 || accounts.Accounts[0].Name != "billing" {
		t.Fatalf("unexpected accounts payload: %+v", accounts.Accounts)
	}
}
