package recordstore

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateDate = errors.New("event already exists for date")
	ErrClosed        = errors.New("store closed")
)
