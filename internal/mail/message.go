package mail

import (
	"context"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Attachment is one MIME part of a fetched message that may become a
// document.
type Attachment struct {
	Filename string
	Inline   bool
	Data     []byte
}

// Message is a fetched mail message reduced to what ingestion needs.
type Message struct {
	UID         imap.UID
	Subject     string
	From        string
	FromName    string
	Date        time.Time
	Attachments []Attachment
}

// Mailbox is the IMAP surface the ingest handler and post-consume actions
// operate on. The production implementation is Client; tests substitute
// fakes.
type Mailbox interface {
	SelectFolder(ctx context.Context, folder string) error
	ListFolders(ctx context.Context) ([]string, error)
	Search(ctx context.Context, criteria *imap.SearchCriteria) ([]imap.UID, error)
	Fetch(ctx context.Context, uids []imap.UID) ([]*Message, error)
	AddFlags(ctx context.Context, uids []imap.UID, flags ...imap.Flag) error
	Move(ctx context.Context, uids []imap.UID, folder string) error
	Delete(ctx context.Context, uids []imap.UID) error
	Close() error
}
