package api

import (
	"slices"
	"time"

	"mailroom/internal/queue"
	"mailroom/internal/rules"
	"mailroom/internal/stage"
	"mailroom/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}

	dto := QueueItem{
		ID:               item.ID,
		Title:            item.Title,
		OriginalFilename: item.OriginalFilename,
		Status:           string(item.Status),
		Progress: QueueProgress{
			Stage:   item.ProgressStage,
			Percent: item.ProgressPercent,
			Message: item.ProgressMessage,
		},
		ErrorMessage:   item.ErrorMessage,
		AccountName:    item.AccountName,
		RuleName:       item.RuleName,
		Correspondent:  item.Correspondent,
		Tags:           slices.Clone(item.Tags),
		MimeType:       item.MimeType,
		MessageUID:     item.MessageUID,
		MessageSubject: item.MessageSubject,
		MessageFrom:    item.MessageFrom,
		StagedPath:     item.StagedPath,
		FinalPath:      item.FinalPath,
		NeedsReview:    item.NeedsReview,
		ReviewReason:   item.ReviewReason,
	}

	if !item.CreatedAt.IsZero() {
		dto.CreatedAt = item.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !item.UpdatedAt.IsZero() {
		dto.UpdatedAt = item.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	stats := make(map[string]int, len(summary.QueueStats))
	for status, count := range summary.QueueStats {
		stats[string(status)] = count
	}

	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  stats,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}

	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastItem != nil {
		last := FromQueueItem(summary.LastItem)
		wf.LastItem = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromAccount converts an account record, omitting the stored password.
func FromAccount(account *rules.Account) Account {
	if account == nil {
		return Account{}
	}
	dto := Account{
		ID:       account.ID,
		Name:     account.Name,
		Server:   account.Server,
		Port:     account.Port,
		Security: string(account.Security),
		Username: account.Username,
		Enabled:  account.Enabled,
	}
	if !account.CreatedAt.IsZero() {
		dto.CreatedAt = account.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !account.UpdatedAt.IsZero() {
		dto.UpdatedAt = account.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromAccounts converts a slice of account records into API DTOs.
func FromAccounts(accounts []*rules.Account) []Account {
	if len(accounts) == 0 {
		return nil
	}
	out := make([]Account, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, FromAccount(account))
	}
	return out
}

// FromRule converts a rule record to its API representation.
func FromRule(rule *rules.Rule) Rule {
	if rule == nil {
		return Rule{}
	}
	return Rule{
		ID:                       rule.ID,
		AccountID:                rule.AccountID,
		Name:                     rule.Name,
		SortOrder:                rule.SortOrder,
		Folder:                   rule.Folder,
		FilterFrom:               rule.FilterFrom,
		FilterSubject:            rule.FilterSubject,
		FilterBody:               rule.FilterBody,
		FilterAttachmentFilename: rule.FilterAttachmentFilename,
		MaximumAge:               rule.MaximumAge,
		AttachmentType:           string(rule.AttachmentType),
		Action:                   string(rule.Action),
		ActionParameter:          rule.ActionParameter,
		AssignTitleFrom:          string(rule.AssignTitleFrom),
		AssignCorrespondentFrom:  string(rule.AssignCorrespondentFrom),
		AssignCorrespondent:      rule.AssignCorrespondent,
		AssignTags:               slices.Clone(rule.AssignTags),
	}
}

// FromRules converts a slice of rule records into API DTOs.
func FromRules(ruleList []*rules.Rule) []Rule {
	if len(ruleList) == 0 {
		return nil
	}
	out := make([]Rule, 0, len(ruleList))
	for _, rule := range ruleList {
		out = append(out, FromRule(rule))
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
