// Package logs reads the daemon log file for CLI and API consumers. It
// supports offset-based paging so clients can poll for new lines without
// rereading the whole file.
package logs
