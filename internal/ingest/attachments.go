package ingest

import (
	"path"
	"strings"

	"mailroom/internal/mail"
	"mailroom/internal/rules"
)

// selectAttachments filters a message's attachments down to the ones the
// rule consumes. Inline parts only qualify when the rule processes
// everything; the filename filter is a case-insensitive glob.
func selectAttachments(rule rules.Rule, msg *mail.Message) []mail.Attachment {
	var selected []mail.Attachment
	for _, att := range msg.Attachments {
		if att.Inline && rule.AttachmentType == rules.AttachmentsOnly {
			continue
		}
		if strings.TrimSpace(att.Filename) == "" {
			continue
		}
		if !matchesFilenameFilter(rule.FilterAttachmentFilename, att.Filename) {
			continue
		}
		selected = append(selected, att)
	}
	return selected
}

func matchesFilenameFilter(pattern, filename string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return true
	}
	matched, err := path.Match(strings.ToLower(pattern), strings.ToLower(filename))
	if err != nil {
		// An invalid pattern matches nothing rather than everything.
		return false
	}
	return matched
}
