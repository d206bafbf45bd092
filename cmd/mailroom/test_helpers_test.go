package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emersion/go-imap/v2"

	"mailroom/internal/classify"
	"mailroom/internal/config"
	"mailroom/internal/daemon"
	"mailroom/internal/filing"
	"mailroom/internal/ingest"
	"mailroom/internal/ipc"
	"mailroom/internal/mail"
	"mailroom/internal/queue"
	"mailroom/internal/rules"
	"mailroom/internal/testsupport"
	"mailroom/internal/workflow"
)

type idleMailbox struct{}

func (idleMailbox) SelectFolder(context.Context, string) error    { return nil }
func (idleMailbox) ListFolders(context.Context) ([]string, error) { return []string{"INBOX"}, nil }
func (idleMailbox) Search(context.Context, *imap.SearchCriteria) ([]imap.UID, error) {
	return nil, nil
}
func (idleMailbox) Fetch(context.Context, []imap.UID) ([]*mail.Message, error) { return nil, nil }
func (idleMailbox) AddFlags(context.Context, []imap.UID, ...imap.Flag) error   { return nil }
func (idleMailbox) Move(context.Context, []imap.UID, string) error             { return nil }
func (idleMailbox) Delete(context.Context, []imap.UID) error                   { return nil }
func (idleMailbox) Close() error                                               { return nil }

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	ruleStore  *rules.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ruleStore := testsupport.MustOpenRules(t, cfg)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "mailroom.toml")
	writeTestConfig(t, configPath, cfg)

	dialer := func(rules.Account, *slog.Logger) (mail.Mailbox, error) {
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

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(testsupport.BaseDir(cfg), "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, nil)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		ruleStore:  ruleStore,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nconsume_dir = %q\narchive_dir = %q\nexport_dir = %q\nlog_dir = %q\napi_bind = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.ConsumeDir,
		cfg.Paths.ArchiveDir,
		cfg.Paths.ExportDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
