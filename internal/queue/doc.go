// Package queue persists staged documents in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema migrations, stats queries,
// heartbeat tracking, stuck-item recovery, and the status transitions the
// workflow manager depends on. Queue items capture the staged file, the mail
// provenance that produced it, classification results, and review flags so
// stages can coordinate without additional state.
//
// The database is treated as transient storage for in-flight documents rather
// than a long-term archive; the filed archive tree is the durable record.
package queue
