package castlelink

import "errors"

var (
	// ErrNotInitialized is returned when Begin runs before Init.
	ErrNotInitialized = errors.New("castlelink: not initialized")
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("castlelink: already initialized")
	// ErrNotStarted is returned by calls that need a successful Begin.
	ErrNotStarted = errors.New("castlelink: not started")
	// ErrAlreadyStarted is returned by a second Begin.
	ErrAlreadyStarted = errors.New("castlelink: already started")
	// ErrConfig is wrapped by every Begin configuration failure.
	ErrConfig = errors.New("castlelink: invalid configuration")
)
