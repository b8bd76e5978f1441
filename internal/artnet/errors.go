package artnet

import "errors"

// Domain errors for the Art-Net package.
var (
	// ErrInvalidPacket is returned when a received datagram cannot be
	// decoded as the expected Art-Net packet type.
	ErrInvalidPacket = errors.New("artnet: invalid packet")

	// ErrUnknownOpCode is returned when a datagram carries an opcode
	// this implementation does not handle.
	ErrUnknownOpCode = errors.New("artnet: unknown opcode")

	// ErrNotRunning is returned when an operation requires a started server.
	ErrNotRunning = errors.New("artnet: server not running")

	// ErrPayloadTooLarge is returned when DMX data exceeds 512 channels.
	ErrPayloadTooLarge = errors.New("artnet: payload exceeds 512 channels")
)
