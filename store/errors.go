package store

import "errors"

var (
	// not found (404)
	ErrUserNotFound = errors.New("user not found")

	// conflict (409)
	ErrUsernameTaken = errors.New("username already exists")

	// bad request (400)
	ErrLastAdmin          = errors.New("cannot remove the last admin")
	ErrNoFieldsToUpdate   = errors.New("no fields to update")
	ErrInvalidUsername    = errors.New("username must not be empty")
	ErrMissingCredentials = errors.New("username and password required")

	// authentication (401)
	ErrInvalidCredentials = errors.New("invalid credentials")
)
