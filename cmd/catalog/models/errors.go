package models

import "errors"

// Error kinds shared by stores, service and handlers. Match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyLiked      = errors.New("already liked")
	ErrNotLiked          = errors.New("not liked")
	ErrDuplicateIdentity = errors.New("duplicate identity")
	ErrStorageFailure    = errors.New("storage failure")
	ErrInvalidEntry      = errors.New("invalid entry")
)
