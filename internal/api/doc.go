// Package api defines the transport-neutral DTOs and read services shared
// by the IPC server, the HTTP endpoints, and the CLI renderers.
package api
