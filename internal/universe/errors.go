package universe

import "errors"

// Domain errors for the universe package.
var (
	// ErrInvalidChannel is returned when a channel number is outside 1-512.
	ErrInvalidChannel = errors.New("universe: channel must be in [1, 512]")

	// ErrNoSender is returned when a frame send is requested but no
	// frame sender is attached to the store.
	ErrNoSender = errors.New("universe: no frame sender attached")
)
