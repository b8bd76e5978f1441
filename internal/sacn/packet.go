package sacn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/nerrad567/dmx-core/internal/dmx"
)

// E1.31 wire constants.
const (
	// UDPPort is the IANA-assigned sACN port.
	UDPPort = 5568

	// MinUniverse and MaxUniverse bound valid E1.31 universe IDs.
	MinUniverse = 1
	MaxUniverse = 63999

	// DefaultPriority is the framing-layer priority used when none is
	// configured.
	DefaultPriority = 100

	// MaxPriority is the highest legal framing-layer priority.
	MaxPriority = 200

	// sourceNameSize is the fixed framing-layer name field width.
	sourceNameSize = 64

	// Layer offsets. The root layer spans bytes 0-37, the framing
	// layer 38-114 and the DMP layer 115 onward.
	rootLayerOffset    = 0
	framingLayerOffset = 38
	dmpLayerOffset     = 115

	// minDataPacketSize is a data packet with zero DMX slots: the
	// three layer headers plus the start code.
	minDataPacketSize = 126

	// syncPacketSize is a fixed-size E1.31 synchronization packet.
	syncPacketSize = 49
)

// Layer vectors.
const (
	vectorRootData     = 0x00000004
	vectorRootExtended = 0x00000008
	vectorFramingData  = 0x00000002
	vectorFramingSync  = 0x00000001
	vectorDMPSetData   = 0x02

	dmpAddressTypeAndDataType = 0xA1
)

// Framing-layer option bits.
const (
	optionPreview    = 0x80
	optionTerminated = 0x40
	optionForceSync  = 0x20
)

// acnPacketIdentifier is the fixed ACN PID in every root layer.
var acnPacketIdentifier = [12]byte{'A', 'S', 'C', '-', 'E', '1', '.', '1', '7', 0, 0, 0}

// ValidUniverse reports whether id is a legal E1.31 universe.
func ValidUniverse(id int) bool {
	return id >= MinUniverse && id <= MaxUniverse
}

// MulticastGroup returns the E1.31 multicast group of a universe:
// 239.255.(U>>8).(U&0xFF).
func MulticastGroup(universe uint16) net.IP {
	return net.IPv4(239, 255, byte(universe>>8), byte(universe&0xFF))
}

// DataPacket is a decoded or to-be-encoded E1.31 data packet.
//
// Encode always emits start code 0x00; StartCode is populated on
// decode so receivers can recognize alternate start codes such as
// 0xDD per-address priority.
type DataPacket struct {
	// CID is the sender's component identifier.
	CID [16]byte

	// SourceName identifies the sender, up to 64 bytes.
	SourceName string

	// Priority arbitrates between sources, 0-200.
	Priority uint8

	// SyncAddress is the synchronization universe, 0 when unused.
	SyncAddress uint16

	// Sequence detects loss and reordering.
	Sequence uint8

	// Preview marks data intended for visualizers only.
	Preview bool

	// Terminated marks the source's final transmission.
	Terminated bool

	// ForceSync requests synchronized output even without a sync
	// packet.
	ForceSync bool

	// Universe is the destination universe, 1-63999.
	Universe uint16

	// StartCode is the DMX start code, set on decode.
	StartCode uint8

	// Data holds up to 512 channel values.
	Data []byte
}

// flagsAndLength packs the ACN flags nibble (always 0x7) with a
// 12-bit PDU length.
func flagsAndLength(length int) uint16 {
	return 0x7000 | uint16(length&0x0FFF)
}

// Encode serializes the packet into its three-layer wire form.
func (p DataPacket) Encode() ([]byte, error) {
	if !ValidUniverse(int(p.Universe)) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidUniverse, p.Universe)
	}
	if len(p.Data) > dmx.UniverseSize {
		return nil, fmt.Errorf("%w: %d channels", ErrPayloadTooLarge, len(p.Data))
	}
	if p.Priority > MaxPriority {
		return nil, fmt.Errorf("%w: got %d", ErrPriorityOutOfRange, p.Priority)
	}
	if len(p.SourceName) > sourceNameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrSourceNameTooLong, len(p.SourceName))
	}

	total := minDataPacketSize + len(p.Data)
	buf := make([]byte, total)

	// Root layer.
	binary.BigEndian.PutUint16(buf[0:2], 0x0010)
	binary.BigEndian.PutUint16(buf[2:4], 0x0000)
	copy(buf[4:16], acnPacketIdentifier[:])
	binary.BigEndian.PutUint16(buf[16:18], flagsAndLength(total-16))
	binary.BigEndian.PutUint32(buf[18:22], vectorRootData)
	copy(buf[22:38], p.CID[:])

	// Framing layer.
	binary.BigEndian.PutUint16(buf[38:40], flagsAndLength(total-framingLayerOffset))
	binary.BigEndian.PutUint32(buf[40:44], vectorFramingData)
	copy(buf[44:44+sourceNameSize], p.SourceName)
	buf[108] = p.Priority
	binary.BigEndian.PutUint16(buf[109:111], p.SyncAddress)
	buf[111] = p.Sequence
	buf[112] = p.options()
	binary.BigEndian.PutUint16(buf[113:115], p.Universe)

	// DMP layer. The property values are the start code followed by
	// the channel data; the start code on the wire is always 0x00.
	binary.BigEndian.PutUint16(buf[115:117], flagsAndLength(total-dmpLayerOffset))
	buf[117] = vectorDMPSetData
	buf[118] = dmpAddressTypeAndDataType
	binary.BigEndian.PutUint16(buf[119:121], 0x0000)
	binary.BigEndian.PutUint16(buf[121:123], 0x0001)
	binary.BigEndian.PutUint16(buf[123:125], uint16(1+len(p.Data)))
	buf[125] = 0x00
	copy(buf[126:], p.Data)

	return buf, nil
}

func (p DataPacket) options() uint8 {
	var o uint8
	if p.Preview {
		o |= optionPreview
	}
	if p.Terminated {
		o |= optionTerminated
	}
	if p.ForceSync {
		o |= optionForceSync
	}
	return o
}

// DecodeDataPacket parses an E1.31 data packet.
func DecodeDataPacket(data []byte) (DataPacket, error) {
	var p DataPacket

	if len(data) < minDataPacketSize {
		return p, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidPacket, len(data), minDataPacketSize)
	}
	if binary.BigEndian.Uint16(data[0:2]) != 0x0010 {
		return p, fmt.Errorf("%w: bad preamble size", ErrInvalidPacket)
	}
	if !bytes.Equal(data[4:16], acnPacketIdentifier[:]) {
		return p, fmt.Errorf("%w: bad ACN packet identifier", ErrInvalidPacket)
	}
	if v := binary.BigEndian.Uint32(data[18:22]); v != vectorRootData {
		return p, fmt.Errorf("%w: root vector 0x%08X", ErrInvalidPacket, v)
	}
	if v := binary.BigEndian.Uint32(data[40:44]); v != vectorFramingData {
		return p, fmt.Errorf("%w: framing vector 0x%08X", ErrInvalidPacket, v)
	}
	if data[117] != vectorDMPSetData {
		return p, fmt.Errorf("%w: DMP vector 0x%02X", ErrInvalidPacket, data[117])
	}

	copy(p.CID[:], data[22:38])
	p.SourceName = string(bytes.TrimRight(data[44:44+sourceNameSize], "\x00"))
	p.Priority = data[108]
	p.SyncAddress = binary.BigEndian.Uint16(data[109:111])
	p.Sequence = data[111]
	options := data[112]
	p.Preview = options&optionPreview != 0
	p.Terminated = options&optionTerminated != 0
	p.ForceSync = options&optionForceSync != 0
	p.Universe = binary.BigEndian.Uint16(data[113:115])

	count := int(binary.BigEndian.Uint16(data[123:125]))
	if count < 1 || minDataPacketSize+count-1 > len(data) {
		return p, fmt.Errorf("%w: property count %d exceeds packet", ErrInvalidPacket, count)
	}
	p.StartCode = data[125]
	p.Data = make([]byte, count-1)
	copy(p.Data, data[126:126+count-1])

	return p, nil
}

// EncodeSyncPacket builds an E1.31 synchronization packet that tells
// receivers holding force-synced data to act on it.
func EncodeSyncPacket(cid [16]byte, sequence uint8, syncAddress uint16) []byte {
	buf := make([]byte, syncPacketSize)

	binary.BigEndian.PutUint16(buf[0:2], 0x0010)
	binary.BigEndian.PutUint16(buf[2:4], 0x0000)
	copy(buf[4:16], acnPacketIdentifier[:])
	binary.BigEndian.PutUint16(buf[16:18], flagsAndLength(syncPacketSize-16))
	binary.BigEndian.PutUint32(buf[18:22], vectorRootExtended)
	copy(buf[22:38], cid[:])

	binary.BigEndian.PutUint16(buf[38:40], flagsAndLength(syncPacketSize-framingLayerOffset))
	binary.BigEndian.PutUint32(buf[40:44], vectorFramingSync)
	buf[44] = sequence
	binary.BigEndian.PutUint16(buf[45:47], syncAddress)
	// Bytes 47-48 are reserved.

	return buf
}
