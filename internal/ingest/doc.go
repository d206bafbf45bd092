// Package ingest pulls documents out of IMAP accounts.
//
// The Handler walks every enabled account, runs its rules in order, stages
// matching attachments into the consume directory, and enqueues them for
// classification. A rule's post-consume action only runs for messages that
// actually produced at least one document, so unconsumed mail is retried on
// the next poll. Rule failures are isolated: one broken rule does not stop
// the rest of the account.
package ingest
