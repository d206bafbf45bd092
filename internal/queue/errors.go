package queue

import "errors"

// ErrorClassifier allows errors to declare their classification for status
// mapping. Errors that implement this interface can influence whether a
// failure results in StatusFailed (retry-able) or StatusReview (needs manual
// intervention).
type ErrorClassifier interface {
	// ErrorKind returns a string classification of the error.
	// Known kinds that map to StatusReview: "validation", "configuration", "unsupported"
	// All other kinds map to StatusFailed.
	ErrorKind() string
}

// FailureStatus maps a stage error to the queue status the workflow manager
// should persist after the stage fails.
func FailureStatus(err error) Status {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		switch classifier.ErrorKind() {
		case "validation", "configuration", "unsupported":
			return StatusReview
		}
	}
	return StatusFailed
}
