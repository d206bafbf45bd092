package mail

import (
	"context"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"

	"mailroom/internal/rules"
)

type fakeMailbox struct {
	addedFlags []imap.Flag
	addedUIDs  []imap.UID
	movedTo    string
	deleted    []imap.UID
}

func (f *fakeMailbox) SelectFolder(context.Context, string) error { return nil }

func (f *fakeMailbox) ListFolders(context.Context) ([]string, error) { return nil, nil }

func (f *fakeMailbox) Search(context.Context, *imap.SearchCriteria) ([]imap.UID, error) {
	return nil, nil
}

func (f *fakeMailbox) Fetch(context.Context, []imap.UID) ([]*Message, error) { return nil, nil }

func (f *fakeMailbox) AddFlags(_ context.Context, uids []imap.UID, flags ...imap.Flag) error {
	f.addedUIDs = append(f.addedUIDs, uids...)
	f.addedFlags = append(f.addedFlags, flags...)
	return nil
}

func (f *fakeMailbox) Move(_ context.Context, uids []imap.UID, folder string) error {
	f.movedTo = folder
	f.addedUIDs = append(f.addedUIDs, uids...)
	return nil
}

func (f *fakeMailbox) Delete(_ context.Context, uids []imap.UID) error {
	f.deleted = append(f.deleted, uids...)
	return nil
}

func (f *fakeMailbox) Close() error { return nil }

func TestActionForRejectsUnknown(t *testing.T) {
	rule := rules.NewRule(1, "broken")
	rule.Action = "archive"
	if _, err := ActionFor(rule); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestMarkReadAction(t *testing.T) {
	rule := rules.NewRule(1, "receipts")
	action, err := ActionFor(rule)
	if err != nil {
		t.Fatalf("ActionFor: %v", err)
	}

	criteria := &imap.SearchCriteria{}
	action.Criteria(criteria)
	if len(criteria.NotFlag) != 1 || criteria.NotFlag[0] != imap.FlagSeen {
		t.Fatalf("expected unseen criteria, got %+v", criteria.NotFlag)
	}

	mbox := &fakeMailbox{}
	if err := action.PostConsume(context.Background(), mbox, []imap.UID{3, 4}); err != nil {
		t.Fatalf("PostConsume: %v", err)
	}
	if len(mbox.addedFlags) != 1 || mbox.addedFlags[0] != imap.FlagSeen {
		t.Fatalf("expected seen flag, got %v", mbox.addedFlags)
	}
	if len(mbox.addedUIDs) != 2 {
		t.Fatalf("expected 2 uids, got %v", mbox.addedUIDs)
	}
}

func TestFlagAction(t *testing.T) {
	rule := rules.NewRule(1, "flagged")
	rule.Action = rules.ActionFlag
	action, err := ActionFor(rule)
	if err != nil {
		t.Fatalf("ActionFor: %v", err)
	}

	criteria := &imap.SearchCriteria{}
	action.Criteria(criteria)
	if len(criteria.NotFlag) != 1 || criteria.NotFlag[0] != imap.FlagFlagged {
		t.Fatalf("expected unflagged criteria, got %+v", criteria.NotFlag)
	}

	mbox := &fakeMailbox{}
	if err := action.PostConsume(context.Background(), mbox, []imap.UID{9}); err != nil {
		t.Fatalf("PostConsume: %v", err)
	}
	if len(mbox.addedFlags) != 1 || mbox.addedFlags[0] != imap.FlagFlagged {
		t.Fatalf("expected flagged flag, got %v", mbox.addedFlags)
	}
}

func TestMoveAction(t *testing.T) {
	rule := rules.NewRule(1, "archive")
	rule.Action = rules.ActionMove
	rule.ActionParameter = "Processed"
	action, err := ActionFor(rule)
	if err != nil {
		t.Fatalf("ActionFor: %v", err)
	}

	criteria := &imap.SearchCriteria{}
	action.Criteria(criteria)
	if len(criteria.NotFlag) != 0 {
		t.Fatalf("move should not constrain flags: %+v", criteria.NotFlag)
	}

	mbox := &fakeMailbox{}
	if err := action.PostConsume(context.Background(), mbox, []imap.UID{1}); err != nil {
		t.Fatalf("PostConsume: %v", err)
	}
	if mbox.movedTo != "Processed" {
		t.Fatalf("expected move target Processed, got %q", mbox.movedTo)
	}
}

func TestDeleteAction(t *testing.T) {
	rule := rules.NewRule(1, "purge")
	rule.Action = rules.ActionDelete
	action, err := ActionFor(rule)
	if err != nil {
		t.Fatalf("ActionFor: %v", err)
	}

	mbox := &fakeMailbox{}
	if err := action.PostConsume(context.Background(), mbox, []imap.UID{5, 6}); err != nil {
		t.Fatalf("PostConsume: %v", err)
	}
	if len(mbox.deleted) != 2 {
		t.Fatalf("expected 2 deleted uids, got %v", mbox.deleted)
	}
}

func TestTagAction(t *testing.T) {
	rule := rules.NewRule(1, "labeled")
	rule.Action = rules.ActionTag
	rule.ActionParameter = "mailroom"
	action, err := ActionFor(rule)
	if err != nil {
		t.Fatalf("ActionFor: %v", err)
	}

	criteria := &imap.SearchCriteria{}
	action.Criteria(criteria)
	if len(criteria.NotFlag) != 1 || criteria.NotFlag[0] != imap.Flag("mailroom") {
		t.Fatalf("expected keyword criteria, got %+v", criteria.NotFlag)
	}

	mbox := &fakeMailbox{}
	if err := action.PostConsume(context.Background(), mbox, []imap.UID{2}); err != nil {
		t.Fatalf("PostConsume: %v", err)
	}
	if len(mbox.addedFlags) != 1 || mbox.addedFlags[0] != imap.Flag("mailroom") {
		t.Fatalf("expected keyword flag, got %v", mbox.addedFlags)
	}
}

func TestBuildCriteria(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rule := rules.NewRule(1, "invoices")
	rule.MaximumAge = 30
	rule.FilterFrom = "billing@example.com"
	rule.FilterSubject = "invoice"
	rule.FilterBody = "total due"

	criteria := BuildCriteria(rule, now)
	if !criteria.Since.Equal(now.AddDate(0, 0, -30)) {
		t.Fatalf("unexpected since: %v", criteria.Since)
	}
	if len(criteria.Header) != 2 {
		t.Fatalf("expected 2 header criteria, got %d", len(criteria.Header))
	}
	if criteria.Header[0].Key != "From" || criteria.Header[1].Key != "Subject" {
		t.Fatalf("unexpected header keys: %+v", criteria.Header)
	}
	if len(criteria.Body) != 1 || criteria.Body[0] != "total due" {
		t.Fatalf("unexpected body criteria: %v", criteria.Body)
	}
}

func TestBuildCriteriaEmptyRule(t *testing.T) {
	criteria := BuildCriteria(rules.NewRule(1, "all"), time.Now())
	if !criteria.Since.IsZero() || len(criteria.Header) != 0 || len(criteria.Body) != 0 {
		t.Fatalf("expected empty criteria, got %+v", criteria)
	}
}
