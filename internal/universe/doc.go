// Package universe implements the per-universe channel-state engine.
//
// A Store caches the 512 channel values of one DMX universe, tracks
// which channels changed since the last transmission, fans out change
// notifications to registered listeners, and decides how much of the
// 512-byte frame must go on the wire.
//
// # Partial frames
//
// When partial-universe mode is enabled, a frame covers every channel
// that has ever been configured, not merely the channels touched by the
// triggering update. A frame truncated at the highest changed channel
// would silently reset higher, unrelated channels (pan/tilt on a moving
// head, for example) to zero on the receiver. The first frame after
// startup always carries the full universe so receivers start from a
// known state.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Protocol receive
// paths, the animation engine, and direct API callers may mutate the
// same Store from different goroutines.
package universe
