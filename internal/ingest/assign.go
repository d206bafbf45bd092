package ingest

import (
	"strings"

	"mailroom/internal/fileutil"
	"mailroom/internal/mail"
	"mailroom/internal/rules"
)

// titleFor resolves a document title from the rule's configured source,
// falling back to the attachment filename when the subject is empty.
func titleFor(rule rules.Rule, msg *mail.Message, filename string) string {
	switch rule.AssignTitleFrom {
	case rules.TitleFromFilename:
		return fileutil.Stem(filename)
	default:
		if subject := strings.TrimSpace(msg.Subject); subject != "" {
			return subject
		}
		return fileutil.Stem(filename)
	}
}

// correspondentFor resolves the correspondent name from the rule's
// configured source. An empty result means no correspondent is assigned.
func correspondentFor(rule rules.Rule, msg *mail.Message) string {
	switch rule.AssignCorrespondentFrom {
	case rules.CorrespondentFromEmail:
		return strings.TrimSpace(msg.From)
	case rules.CorrespondentFromName:
		if name := strings.TrimSpace(msg.FromName); name != "" {
			return name
		}
		return strings.TrimSpace(msg.From)
	case rules.CorrespondentFromCustom:
		return strings.TrimSpace(rule.AssignCorrespondent)
	default:
		return ""
	}
}
