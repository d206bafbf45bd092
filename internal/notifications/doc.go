// Package notifications pushes workflow events to ntfy.
//
// When no topic is configured every notification is a silent no-op, so
// callers never guard their notification calls.
package notifications
