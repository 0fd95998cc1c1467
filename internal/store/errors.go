package store

import "errors"

var (
	ErrNotFound      = errors.New("log entry not found")
	ErrInvalidStatus = errors.New("invalid status: must be open, investigating, resolved or ignored")
	ErrPresetMissing = errors.New("filter preset not found")
)
