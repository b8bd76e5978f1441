// Package artnet implements the Art-Net 4 protocol backend.
//
// Art-Net transports DMX512 channel data over UDP port 6454. This
// package provides:
//
//   - A binary codec for the packet types DMX Core speaks: ArtPoll,
//     ArtPollReply, ArtDmx, ArtTrigger, ArtCommand, ArtDiagData,
//     ArtTimeCode, ArtIpProgReply and ArtSync.
//   - A Server that discovers remote nodes with a randomized ArtPoll
//     loop, tracks them by (source IP, bind index), evicts nodes that
//     fall silent, and drives one retransmit loop per configured
//     port address.
//
// # Node lifecycle
//
// A remote node moves through Unknown → Discovered (first ArtPollReply)
// → Alive (refreshed within the stale cutoff) → Removed (silent for
// longer than the cutoff). Discovery, update and loss are reported
// through a node event callback; loss also fires once per port address
// the node advertised.
//
// # Thread Safety
//
// All exported methods of Server are safe for concurrent use.
//
// # References
//
//   - Art-Net 4 specification: https://art-net.org.uk
package artnet
