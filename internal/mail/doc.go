// Package mail wraps the IMAP transport used to pull documents out of
// mailboxes.
//
// A Client dials one account with the configured security mode and exposes
// the small Mailbox surface the ingest handler needs: folder selection,
// UID search, message fetch, and the flag/move/delete operations the
// post-consume actions are built from. Message parsing extracts attachments
// via go-message so the rest of the system never touches raw MIME.
package mail
