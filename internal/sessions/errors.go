package sessions

import "errors"

var (
	ErrNotFound           = errors.New("user not found")
	ErrConflict           = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)
