// Package bridge exposes the DMX core over MQTT.
//
// The bridge is the integration surface for automation systems: channel
// writes and fades come in as JSON commands, and universe state plus
// node lifecycle events go out as retained publications.
//
// # Architecture
//
//	dmx/universe/<addr>/set      → channel writes into the universe store
//	dmx/universe/<addr>/animate  → fades started on the animation engine
//	dmx/universe/<addr>/state    ← retained channel state snapshots
//	dmx/nodes/<ip>_<bind>        ← retained node lifecycle events
//	dmx/trigger                  ← inbound ArtTrigger events
//
// State snapshots are coalesced with a rate limiter per universe, so a
// running fade produces periodic snapshots rather than one publication
// per frame.
//
// # Thread Safety
//
// All methods are safe for concurrent use. MQTT handlers run on the
// paho client's goroutines; store listeners run on whichever goroutine
// performed the channel update.
package bridge
