package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-imap/v2"

	"mailroom/internal/rules"
)

// Action is a rule's post-consume behavior. Criteria narrows the search so
// already-handled messages are not picked up again; PostConsume runs only
// for messages that actually produced documents.
type Action interface {
	Criteria(criteria *imap.SearchCriteria)
	PostConsume(ctx context.Context, mbox Mailbox, uids []imap.UID) error
}

// ActionFor returns the Action implementation for a rule.
func ActionFor(rule rules.Rule) (Action, error) {
	switch rule.Action {
	case rules.ActionDelete:
		return deleteAction{}, nil
	case rules.ActionMove:
		return moveAction{target: rule.ActionParameter}, nil
	case rules.ActionFlag:
		return flagAction{}, nil
	case rules.ActionMarkRead:
		return markReadAction{}, nil
	case rules.ActionTag:
		return tagAction{keyword: rule.ActionParameter}, nil
	default:
		return nil, fmt.Errorf("rule %s: unknown action %q", rule.Name, rule.Action)
	}
}

// deleteAction removes handled messages. Every message in the folder is a
// candidate since deleted mail cannot be seen twice.
type deleteAction struct{}

func (deleteAction) Criteria(*imap.SearchCriteria) {}

func (deleteAction) PostConsume(ctx context.Context, mbox Mailbox, uids []imap.UID) error {
	return mbox.Delete(ctx, uids)
}

// moveAction relocates handled messages to a target folder.
type moveAction struct {
	target string
}

func (moveAction) Criteria(*imap.SearchCriteria) {}

func (a moveAction) PostConsume(ctx context.Context, mbox Mailbox, uids []imap.UID) error {
	return mbox.Move(ctx, uids, a.target)
}

// flagAction marks handled messages flagged and only searches unflagged mail.
type flagAction struct{}

func (flagAction) Criteria(criteria *imap.SearchCriteria) {
	criteria.NotFlag = append(criteria.NotFlag, imap.FlagFlagged)
}

func (flagAction) PostConsume(ctx context.Context, mbox Mailbox, uids []imap.UID) error {
	return mbox.AddFlags(ctx, uids, imap.FlagFlagged)
}

// markReadAction marks handled messages seen and only searches unseen mail.
type markReadAction struct{}

func (markReadAction) Criteria(criteria *imap.SearchCriteria) {
	criteria.NotFlag = append(criteria.NotFlag, imap.FlagSeen)
}

func (markReadAction) PostConsume(ctx context.Context, mbox Mailbox, uids []imap.UID) error {
	return mbox.AddFlags(ctx, uids, imap.FlagSeen)
}

// tagAction stores a keyword flag on handled messages and only searches mail
// that does not carry it yet. Servers that expose labels as keywords (Gmail
// included) surface the keyword as a label.
type tagAction struct {
	keyword string
}

func (a tagAction) flag() imap.Flag {
	return imap.Flag(strings.TrimSpace(a.keyword))
}

func (a tagAction) Criteria(criteria *imap.SearchCriteria) {
	criteria.NotFlag = append(criteria.NotFlag, a.flag())
}

func (a tagAction) PostConsume(ctx context.Context, mbox Mailbox, uids []imap.UID) error {
	return mbox.AddFlags(ctx, uids, a.flag())
}
