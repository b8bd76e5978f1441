// Package dmx defines the core addressing primitives shared by every
// protocol backend in DMX Core.
//
// A DMX universe carries 512 one-byte channels. Universes are identified
// by a PortAddress: the Art-Net (net, sub-net, universe) triple, which
// also packs into a single flat integer for wire encoding and map keys.
// sACN identifies universes with a plain number in the range 1-63999;
// helpers map between the two spaces.
//
// Example:
//
//	addr, err := dmx.ParsePortAddress("3/2/1")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(addr.Packed()) // 0x3201
package dmx
