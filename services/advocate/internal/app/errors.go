package app

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	// ErrPaymentRequired means a free-tier user has no credits left.
	ErrPaymentRequired = errors.New("no credits remaining")
	// ErrInvalidState rejects processing a document that is already
	// processing or completed.
	ErrInvalidState     = errors.New("invalid document state")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrAnalysisFailed   = errors.New("analysis failed")
)
