package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"mailroom/internal/rules"
	"mailroom/internal/testsupport"
)

func TestRuleAddAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewAccount(t, env.ruleStore, "billing")

	stdout, _, err := runCLI(t, []string{
		"rule", "add", "billing", "invoices",
		"--filter-subject", "invoice",
		"--action", "move",
		"--action-parameter", "Processed",
		"--tag", "finance",
	}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rule add: %v", err)
	}
	requireContains(t, stdout, "Added rule invoices")
	requireContains(t, stdout, "to account billing")

	stdout, _, err = runCLI(t, []string{"rule", "show", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rule show: %v", err)
	}
	requireContains(t, stdout, "Name:               invoices")
	requireContains(t, stdout, "Filter Subject:     invoice")
	requireContains(t, stdout, "(Processed)")
	requireContains(t, stdout, "Tags:               finance")
}

func TestRuleAddRejectsUnknownAction(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.NewAccount(t, env.ruleStore, "billing")

	_, _, err := runCLI(t, []string{
		"rule", "add", "billing", "invoices",
		"--action", "shred",
	}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestRuleAddUnknownAccount(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"rule", "add", "missing", "invoices"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRuleList(t *testing.T) {
	env := setupCLITestEnv(t)
	account := testsupport.NewAccount(t, env.ruleStore, "billing")
	rule := rules.NewRule(account.ID, "invoices")
	rule.FilterSubject = "invoice"
	if _, err := env.ruleStore.AddRule(context.Background(), &rule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"rule", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rule list: %v", err)
	}
	requireContains(t, stdout, "invoices")
	requireContains(t, stdout, "subject=invoice")
}

func TestRuleListFilteredByAccount(t *testing.T) {
	env := setupCLITestEnv(t)
	billing := testsupport.NewAccount(t, env.ruleStore, "billing")
	personal := testsupport.NewAccount(t, env.ruleStore, "personal")

	invoices := rules.NewRule(billing.ID, "invoices")
	if _, err := env.ruleStore.AddRule(context.Background(), &invoices); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	receipts := rules.NewRule(personal.ID, "receipts")
	if _, err := env.ruleStore.AddRule(context.Background(), &receipts); err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"rule", "list", "--account", "personal"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rule list --account: %v", err)
	}
	requireContains(t, stdout, "receipts")
	if strings.Contains(stdout, "invoices") {
		t.Fatalf("expected rules for personal only, got %q", stdout)
	}
}

func TestRuleRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	account := testsupport.NewAccount(t, env.ruleStore, "billing")
	rule := rules.NewRule(account.ID, "invoices")
	created, err := env.ruleStore.AddRule(context.Background(), &rule)
	if err != nil {
		t.Fatalf("AddRule: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"rule", "remove", fmt.Sprintf("%d", created.ID)}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("rule remove: %v", err)
	}
	requireContains(t, stdout, fmt.Sprintf("Removed rule %d", created.ID))

	_, _, err = runCLI(t, []string{"rule", "remove", fmt.Sprintf("%d", created.ID)}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
