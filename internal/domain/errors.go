package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidPrompt      = errors.New("invalid prompt")
	ErrAlreadyInProgress  = errors.New("generation already in progress")
	ErrAuthExpired        = errors.New("authorization expired")
	ErrAuthDialogFailed   = errors.New("authorization request failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrProviderFailure    = errors.New("provider failure")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
