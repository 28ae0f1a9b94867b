package share

import "errors"

var (
	// ErrNotFound means no qualifying file exists under a slug.
	ErrNotFound = errors.New("file not found")
	// ErrTooLarge means the payload exceeds the applicable size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrTypeNotAllowed means the declared content type is disallowed.
	ErrTypeNotAllowed = errors.New("content type not allowed")
	// ErrBadName means the filename is empty or reserved for internal use.
	ErrBadName = errors.New("invalid file name")
	// ErrBadRequest means a required parameter is missing or malformed.
	ErrBadRequest = errors.New("missing or invalid parameter")
)
