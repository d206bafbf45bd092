// Package logging builds the slog loggers used across Mailroom.
//
// It provides a console handler for interactive use, a JSON handler for
// machine consumption, attr helpers with standardized field names, and a
// no-op logger for tests. Component loggers carry a "component" attribute the
// console handler folds into the message prefix.
package logging
