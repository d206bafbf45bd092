package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mailroom/internal/api"
	"mailroom/internal/queue"
)

// statusDisplayOrder lists queue statuses in pipeline order for stable output.
var statusDisplayOrder = []queue.Status{
	queue.StatusPending,
	queue.StatusClassifying,
	queue.StatusClassified,
	queue.StatusFiling,
	queue.StatusCompleted,
	queue.StatusFailed,
	queue.StatusReview,
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(stats))
	seen := make(map[string]struct{}, len(stats))
	for _, status := range statusDisplayOrder {
		key := string(status)
		if count, ok := stats[key]; ok && count > 0 {
			rows = append(rows, []string{key, strconv.Itoa(count)})
			seen[key] = struct{}{}
		}
	}

	// Anything the daemon reports that is not a known status still shows up.
	extras := make([]string, 0)
	for key, count := range stats {
		if _, ok := seen[key]; ok || count == 0 {
			continue
		}
		if _, known := queue.ParseStatus(key); known {
			continue
		}
		extras = append(extras, key)
	}
	sort.Strings(extras)
	for _, key := range extras {
		rows = append(rows, []string{key, strconv.Itoa(stats[key])})
	}
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		title := item.Title
		if title == "" {
			title = item.OriginalFilename
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			truncate(title, 40),
			item.Status,
			item.Correspondent,
			item.CreatedAt,
		})
	}
	return rows
}

func queueListHeaders() []string {
	return []string{"ID", "Title", "Status", "Correspondent", "Created"}
}

func queueListAlignments() []columnAlignment {
	return []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft}
}

func renderQueueItemDetails(item api.QueueItem) []string {
	lines := []string{
		fmt.Sprintf("ID:            %d", item.ID),
		fmt.Sprintf("Title:         %s", item.Title),
		fmt.Sprintf("Filename:      %s", item.OriginalFilename),
		fmt.Sprintf("Status:        %s", item.Status),
	}
	if item.Progress.Stage != "" {
		lines = append(lines, fmt.Sprintf("Progress:      %s (%.0f%%) %s", item.Progress.Stage, item.Progress.Percent, item.Progress.Message))
	}
	if item.AccountName != "" {
		lines = append(lines, fmt.Sprintf("Account:       %s", item.AccountName))
	}
	if item.RuleName != "" {
		lines = append(lines, fmt.Sprintf("Rule:          %s", item.RuleName))
	}
	if item.Correspondent != "" {
		lines = append(lines, fmt.Sprintf("Correspondent: %s", item.Correspondent))
	}
	if len(item.Tags) > 0 {
		lines = append(lines, fmt.Sprintf("Tags:          %s", strings.Join(item.Tags, ", ")))
	}
	if item.MimeType != "" {
		lines = append(lines, fmt.Sprintf("MIME Type:     %s", item.MimeType))
	}
	if item.MessageSubject != "" {
		lines = append(lines, fmt.Sprintf("Subject:       %s", item.MessageSubject))
	}
	if item.MessageFrom != "" {
		lines = append(lines, fmt.Sprintf("From:          %s", item.MessageFrom))
	}
	if item.StagedPath != "" {
		lines = append(lines, fmt.Sprintf("Staged:        %s", item.StagedPath))
	}
	if item.FinalPath != "" {
		lines = append(lines, fmt.Sprintf("Filed:         %s", item.FinalPath))
	}
	if item.ErrorMessage != "" {
		lines = append(lines, fmt.Sprintf("Error:         %s", item.ErrorMessage))
	}
	if item.NeedsReview {
		lines = append(lines, fmt.Sprintf("Needs Review:  yes (%s)", item.ReviewReason))
	}
	if item.CreatedAt != "" {
		lines = append(lines, fmt.Sprintf("Created:       %s", item.CreatedAt))
	}
	if item.UpdatedAt != "" {
		lines = append(lines, fmt.Sprintf("Updated:       %s", item.UpdatedAt))
	}
	return lines
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
