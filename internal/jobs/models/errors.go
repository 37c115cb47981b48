package models

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid arguments")
	ErrNotReady           = errors.New("not processed yet")
	ErrStaleState         = errors.New("stale state") // lost optimistic transition race
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrQueueUnavailable   = errors.New("queue unavailable")
)
