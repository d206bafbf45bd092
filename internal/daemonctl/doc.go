// Package daemonctl orchestrates mailroomd lifecycle operations for the CLI:
// launching a detached daemon process, waiting for its control socket, and
// stopping or force-terminating a running instance.
package daemonctl
