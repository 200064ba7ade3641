package history

import "errors"

var (
	ErrNotFound     = errors.New("history entry not found")
	ErrForbidden    = errors.New("history entry belongs to another user")
	ErrInvalidToken = errors.New("invalid page token")
)
