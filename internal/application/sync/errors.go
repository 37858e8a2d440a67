package sync

import "errors"

var (
	ErrValidation     = errors.New("row validation failed")
	ErrLookup         = errors.New("student lookup failed")
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrNotConfigured  = errors.New("sync tables not configured")
)
