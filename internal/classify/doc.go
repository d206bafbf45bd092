// Package classify implements the first workflow stage. It sniffs the
// content of staged attachments, records a canonical MIME type on the
// queue item, and routes unsupported documents to manual review.
package classify
