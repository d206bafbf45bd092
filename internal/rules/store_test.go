package rules_test

import (
	"context"
	"path/filepath"
	"testing"

	"mailroom/internal/config"
	"mailroom/internal/rules"
)

func newStore(t *testing.T) *rules.Store {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ConsumeDir = filepath.Join(base, "consume")
	cfg.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	store, err := rules.Open(&cfg)
	if err != nil {
		t.Fatalf("rules.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func addAccount(t *testing.T, store *rules.Store, name string) *rules.Account {
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
		t.Fatalf("AddAccount: %v", err)
	}
	return account
}

func TestAccountRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	account := addAccount(t, store, "personal")
	if account.ID == 0 {
		t.Fatal("expected account id to be assigned")
	}
	if account.Address() != "imap.example.com:993" {
		t.Fatalf("unexpected address %q", account.Address())
	}

	account.Server = "mail.example.org"
	account.Enabled = false
	if err := store.UpdateAccount(ctx, account); err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}

	got, err := store.AccountByName(ctx, "personal")
	if err != nil {
		t.Fatalf("AccountByName: %v", err)
	}
	if got == nil {
		t.Fatal("expected account")
	}
	if got.Server != "mail.example.org" || got.Enabled {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestListAccountsEnabledOnly(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	addAccount(t, store, "active")
	disabled := addAccount(t, store, "dormant")
	disabled.Enabled = false
	if err := store.UpdateAccount(ctx, disabled); err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}

	all, err := store.ListAccounts(ctx, false)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(all))
	}

	enabled, err := store.ListAccounts(ctx, true)
	if err != nil {
		t.Fatalf("ListAccounts enabled: %v", err)
	}
	if len(enabled) != 1 || enabled[0].Name != "active" {
		t.Fatalf("unexpected enabled accounts: %+v", enabled)
	}
}

func TestAccountValidation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	cases := []rules.Account{
		{Server: "imap.example.com", Port: 993, Security: rules.SecuritySSL, Username: "u"},
		{Name: "a", Port: 993, Security: rules.SecuritySSL, Username: "u"},
		{Name: "a", Server: "s", Port: 0, Security: rules.SecuritySSL, Username: "u"},
		{Name: "a", Server: "s", Port: 993, Security: "tls13", Username: "u"},
		{Name: "a", Server: "s", Port: 993, Security: rules.SecuritySSL},
	}
	for i, account := range cases {
		if _, err := store.AddAccount(ctx, &account); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRuleRoundTripAndOrdering(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	account := addAccount(t, store, "personal")

	second := rules.NewRule(account.ID, "invoices")
	second.SortOrder = 2
	second.FilterSubject = "invoice"
	second.Action = rules.ActionMove
	second.ActionParameter = "Archive"
	second.AssignTags = []string{"invoice", "finance"}
	if _, err := store.AddRule(ctx, &second); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	first := rules.NewRule(account.ID, "receipts")
	first.SortOrder = 1
	first.AssignCorrespondentFrom = rules.CorrespondentFromEmail
	if _, err := store.AddRule(ctx, &first); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	ordered, err := store.RulesForAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("RulesForAccount: %v", err)
	}
	if len(ordered) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(ordered))
	}
	if ordered[0].Name != "receipts" || ordered[1].Name != "invoices" {
		t.Fatalf("unexpected rule order: %s, %s", ordered[0].Name, ordered[1].Name)
	}

	got, err := store.RuleByName(ctx, "invoices")
	if err != nil {
		t.Fatalf("RuleByName: %v", err)
	}
	if got == nil {
		t.Fatal("expected rule")
	}
	if got.Action != rules.ActionMove || got.ActionParameter != "Archive" {
		t.Fatalf("action not persisted: %+v", got)
	}
	if len(got.AssignTags) != 2 || got.AssignTags[0] != "invoice" || got.AssignTags[1] != "finance" {
		t.Fatalf("tags not persisted: %v", got.AssignTags)
	}
	if got.Folder != "INBOX" {
		t.Fatalf("expected default folder, got %q", got.Folder)
	}
}

func TestRuleValidation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	account := addAccount(t, store, "personal")

	move := rules.NewRule(account.ID, "move-no-target")
	move.Action = rules.ActionMove
	if _, err := store.AddRule(ctx, &move); err == nil {
		t.Error("expected error for move without parameter")
	}

	custom := rules.NewRule(account.ID, "custom-no-name")
	custom.AssignCorrespondentFrom = rules.CorrespondentFromCustom
	if _, err := store.AddRule(ctx, &custom); err == nil {
		t.Error("expected error for custom correspondent without name")
	}

	aged := rules.NewRule(account.ID, "negative-age")
	aged.MaximumAge = -1
	if _, err := store.AddRule(ctx, &aged); err == nil {
		t.Error("expected error for negative maximum age")
	}
}

func TestRemoveAccountCascadesRules(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	account := addAccount(t, store, "personal")

	rule := rules.NewRule(account.ID, "receipts")
	if _, err := store.AddRule(ctx, &rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	removed, err := store.RemoveAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}
	if !removed {
		t.Fatal("expected removal")
	}

	remaining, err := store.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected cascade delete, got %d rules", len(remaining))
	}
}

func TestEnsureCorrespondentIsCaseInsensitive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.EnsureCorrespondent(ctx, "ACME Corp")
	if err != nil {
		t.Fatalf("EnsureCorrespondent: %v", err)
	}
	second, err := store.EnsureCorrespondent(ctx, "acme corp")
	if err != nil {
		t.Fatalf("EnsureCorrespondent: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same correspondent, got %d and %d", first.ID, second.ID)
	}
	if second.Name != "ACME Corp" {
		t.Fatalf("expected stored spelling, got %q", second.Name)
	}

	list, err := store.ListCorrespondents(ctx)
	if err != nil {
		t.Fatalf("ListCorrespondents: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 correspondent, got %d", len(list))
	}
}
