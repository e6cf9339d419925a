package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds the fetch pipeline can produce.
// Everything the browser or HTTP layer throws is normalized into one of
// these before it reaches the retry controller.
var (
	// ErrCaptchaDetected means the site served a bot-challenge page instead
	// of product content. Retryable, but worth a longer backoff.
	ErrCaptchaDetected = errors.New("bot challenge detected")

	// ErrFetchTimeout means the page never reached a ready state within the
	// configured window. Retryable.
	ErrFetchTimeout = errors.New("page load timed out")

	// ErrInvalidSnapshot means extraction ran but the required fields
	// (title, asin) are missing. Retryable: the page may render differently
	// on a fresh attempt.
	ErrInvalidSnapshot = errors.New("snapshot is missing required fields")
)

// ResolutionError means no recognizable product identifier could be found in
// the URL. Fatal: a different URL format will not appear on retry.
type ResolutionError struct {
	URL string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not extract ASIN from URL %q", e.URL)
}

// ExhaustedRetriesError is the terminal failure after the last attempt. It
// wraps the most recent underlying error.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Last }

// Retryable reports whether the error is worth another fetch attempt. An
// ExhaustedRetriesError is terminal even though the cause it wraps was
// retryable while the budget lasted.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return false
	}
	var exhausted *ExhaustedRetriesError
	if errors.As(err, &exhausted) {
		return false
	}
	return errors.Is(err, ErrCaptchaDetected) ||
		errors.Is(err, ErrFetchTimeout) ||
		errors.Is(err, ErrInvalidSnapshot)
}
