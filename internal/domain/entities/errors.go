package entities

import "errors"

var (
	// ErrMalformedScript: the document cannot be segmented (continuation line before any instruction).
	ErrMalformedScript = errors.New("malformed script")
	// ErrSourceUnavailable: a knowledge source failed or timed out for one clause.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrRewriteFailed: the optimization rewrite failed or produced an invalid Dockerfile.
	ErrRewriteFailed = errors.New("rewrite failed")
	// ErrClauseNotFound: a clause index is outside the segmented document.
	ErrClauseNotFound = errors.New("clause not found")
)
