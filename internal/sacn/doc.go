// Package sacn implements the streaming ACN (E1.31) transport for DMX
// universes: wire codec, sending server with per-universe keep-alive,
// and a multicast receiver.
//
// # Architecture
//
// The codec (packet.go) builds and parses the three nested E1.31
// layers: ACN root, E1.31 framing, and DMP. The Server owns one UDP
// socket shared by every configured universe; each universe gets its
// own sequence counter and keep-alive loop so a lost frame on one
// universe never stalls another. The Receiver joins the E1.31
// multicast group of each subscribed universe on a second socket and
// forwards decoded frames upstream.
//
// Universe IDs follow E1.31: valid range 1-63999, with universe U
// mapped to multicast group 239.255.(U>>8).(U&0xFF).
//
// # Thread Safety
//
// Server and Receiver methods are safe for concurrent use. Writes to
// the shared socket are serialized.
package sacn
