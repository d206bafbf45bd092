package mail

import (
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"mailroom/internal/rules"
)

// BuildCriteria converts a rule's filters into IMAP search criteria. The
// rule's action contributes its own constraints on top (for example the
// mark-read action only searches unseen mail).
func BuildCriteria(rule rules.Rule, now time.Time) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}

	if rule.MaximumAge > 0 {
		criteria.Since = now.AddDate(0, 0, -rule.MaximumAge)
	}
	if from := strings.TrimSpace(rule.FilterFrom); from != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "From", Value: from})
	}
	if subject := strings.TrimSpace(rule.FilterSubject); subject != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "Subject", Value: subject})
	}
	if body := strings.TrimSpace(rule.FilterBody); body != "" {
		criteria.Body = append(criteria.Body, body)
	}
	return criteria
}
