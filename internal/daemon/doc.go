// Package daemon wires mail polling, the processing workflow, and the HTTP
// API into a single supervised process guarded by a lock file.
package daemon
