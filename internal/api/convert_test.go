package api_test

import (
	"testing"
	"time"

	"mailroom/internal/api"
	"mailroom/internal/queue"
	"mailroom/internal/rules"
	"mailroom/internal/stage"
	"mailroom/internal/workflow"
)

func TestFromQueueItemCopiesDocumentFields(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	item := &queue.Item{
		ID:               7,
		Status:           queue.StatusClassified,
		Title:            "Invoice March",
		OriginalFilename: "invoice.pdf",
		AccountName:      "billing",
		RuleName:         "invoices",
		Correspondent:    "ACME Corp",
		Tags:             []string{"invoice", "2026"},
		MimeType:         "application/pdf",
		MessageUID:       "42",
		MessageSubject:   "Invoice March",
		MessageFrom:      "billing@acme.example",
		StagedPath:       "/consume/mailroom-abc-invoice.pdf",
		ProgressStage:    "Classifying",
		ProgressPercent:  100,
		ProgressMessage:  "Detected application/pdf",
		CreatedAt:        created,
	}

	dto := api.FromQueueItem(item)
	if dto.ID != 7 || dto.Status != "classified" {
		t.Fatalf("identity fields wrong: %+v", dto)
	}
	if dto.Correspondent != "ACME Corp" || dto.MimeType != "application/pdf" {
		t.Fatalf("document fields wrong: %+v", dto)
	}
	if len(dto.Tags) != 2 {
		t.Fatalf("tags not copied: %+v", dto.Tags)
	}
	if dto.Progress.Percent != 100 || dto.Progress.Stage != "Classifying" {
		t.Fatalf("progress wrong: %+v", dto.Progress)
	}
	if dto.CreatedAt != "2026-03-14T09:30:00.000Z" {
		t.Fatalf("created at = %q", dto.CreatedAt)
	}
}

func TestFromStatusSummarySortsStageHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Running: true,
		QueueStats: map[queue.Status]int{
			queue.StatusPending:   2,
			queue.StatusCompleted: 5,
		},
		StageHealth: map[string]stage.Health{
			"file":     stage.Healthy("file"),
			"classify": stage.Unhealthy("classify", "consume directory unavailable"),
		},
	}

	wf := api.FromStatusSummary(summary)
	if !wf.Running {
		t.Fatal("running flag lost")
	}
	if wf.QueueStats["pending"] != 2 || wf.QueueStats["completed"] != 5 {
		t.Fatalf("queue stats wrong: %+v", wf.QueueStats)
	}
	if len(wf.StageHealth) != 2 {
		t.Fatalf("expected 2 health entries, got %d", len(wf.StageHealth))
	}
	if wf.StageHealth[0].Name != "classify" || wf.StageHealth[1].Name != "file" {
		t.Fatalf("health not sorted: %+v", wf.StageHealth)
	}
	if wf.StageHealth[0].Ready || wf.StageHealth[0].Detail == "" {
		t.Fatalf("unhealthy detail lost: %+v", wf.StageHealth[0])
	}
}

func TestFromAccountOmitsPassword(t *testing.T) {
	account := &rules.Account{
		ID:       3,
		Name:     "billing",
		Server:   "imap.example.com",
		Port:     993,
		Security: rules.SecuritySSL,
		Username: "billing@example.com",
		Password: "hunter2",
		Enabled:  true,
	}
	dto := api.FromAccount(account)
	if dto.Name != "billing" || dto.Security != "ssl" || !dto.Enabled {
		t.Fatalf("account fields wrong: %+v", dto)
	}
}

func TestFromRuleCopiesFiltersAndAssignments(t *testing.T) {
	rule := rules.NewRule(3, "invoices")
	rule.ID = 11
	rule.FilterSubject = "invoice"
	rule.Action = rules.ActionMove
	rule.ActionParameter = "Processed"
	rule.AssignTags = []string{"invoice"}

	dto := api.FromRule(&rule)
	if dto.ID != 11 || dto.AccountID != 3 || dto.Folder != "INBOX" {
		t.Fatalf("rule identity wrong: %+v", dto)
	}
	if dto.Action != "move" || dto.ActionParameter != "Processed" {
		t.Fatalf("action fields wrong: %+v", dto)
	}
	if len(dto.AssignTags) != 1 || dto.AssignTags[0] != "invoice" {
		t.Fatalf("tags wrong: %+v", dto.AssignTags)
	}
}
