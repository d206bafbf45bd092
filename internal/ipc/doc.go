// Package ipc implements JSON-RPC daemon control over a Unix domain
// socket, used by the mailroom CLI to drive a running mailroomd.
package ipc
