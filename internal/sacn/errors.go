package sacn

import "errors"

// Domain errors for the sACN package.
var (
	// ErrInvalidPacket is returned when a datagram cannot be decoded
	// as an E1.31 packet.
	ErrInvalidPacket = errors.New("sacn: invalid packet")

	// ErrInvalidUniverse is returned for universe IDs outside 1-63999.
	ErrInvalidUniverse = errors.New("sacn: universe must be in [1, 63999]")

	// ErrPriorityOutOfRange is returned for priorities above 200.
	ErrPriorityOutOfRange = errors.New("sacn: priority must be in [0, 200]")

	// ErrSourceNameTooLong is returned when a source name exceeds the
	// 64-byte field.
	ErrSourceNameTooLong = errors.New("sacn: source name exceeds 64 bytes")

	// ErrPayloadTooLarge is returned when DMX data exceeds 512 channels.
	ErrPayloadTooLarge = errors.New("sacn: payload exceeds 512 channels")

	// ErrUnknownUniverse is returned when an operation references a
	// universe that was never added to the server.
	ErrUnknownUniverse = errors.New("sacn: universe not configured")

	// ErrNotRunning is returned when an operation requires a started
	// server.
	ErrNotRunning = errors.New("sacn: server not running")
)
