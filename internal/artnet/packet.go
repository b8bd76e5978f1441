package artnet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/nerrad567/dmx-core/internal/dmx"
)

// Art-Net wire constants.
const (
	// UDPPort is the well-known Art-Net port.
	UDPPort = 6454

	// protocolVersion is the Art-Net protocol revision carried in every
	// packet that has a version field.
	protocolVersion = 14

	// headerSize is the length of the "Art-Net\0" identifier plus the
	// little-endian opcode.
	headerSize = 10

	// versionedHeaderSize additionally covers the big-endian protocol
	// version field (ArtPollReply is the one packet without it).
	versionedHeaderSize = headerSize + 2

	// pollReplyMinSize is the smallest ArtPollReply this decoder
	// accepts, covering every field through the MAC address.
	pollReplyMinSize = 207

	// shortNameSize, longNameSize and nodeReportSize are the fixed
	// text field widths in ArtPollReply.
	shortNameSize  = 18
	longNameSize   = 64
	nodeReportSize = 64
)

// packetID is the 8-byte identifier opening every Art-Net packet.
var packetID = []byte("Art-Net\x00")

// OpCode identifies an Art-Net packet type. Opcodes are transmitted
// little-endian, unlike every other multi-byte field.
type OpCode uint16

// Art-Net opcodes handled by this implementation.
const (
	OpPoll        OpCode = 0x2000
	OpPollReply   OpCode = 0x2100
	OpDiagData    OpCode = 0x2300
	OpCommand     OpCode = 0x2400
	OpDmx         OpCode = 0x5000
	OpSync        OpCode = 0x5200
	OpAddress     OpCode = 0x6000
	OpTimeCode    OpCode = 0x9700
	OpTrigger     OpCode = 0x9900
	OpIpProg      OpCode = 0xF800
	OpIpProgReply OpCode = 0xF900
)

// String returns the conventional name of the opcode.
func (op OpCode) String() string {
	switch op {
	case OpPoll:
		return "ArtPoll"
	case OpPollReply:
		return "ArtPollReply"
	case OpDiagData:
		return "ArtDiagData"
	case OpCommand:
		return "ArtCommand"
	case OpDmx:
		return "ArtDmx"
	case OpSync:
		return "ArtSync"
	case OpAddress:
		return "ArtAddress"
	case OpTimeCode:
		return "ArtTimeCode"
	case OpTrigger:
		return "ArtTrigger"
	case OpIpProg:
		return "ArtIpProg"
	case OpIpProgReply:
		return "ArtIpProgReply"
	default:
		return fmt.Sprintf("OpCode(%#04x)", uint16(op))
	}
}

// PeekOpCode extracts the opcode from a raw datagram after verifying
// the Art-Net identifier.
//
// Returns:
//   - OpCode: The packet's opcode
//   - error: ErrInvalidPacket if the datagram is not Art-Net
func PeekOpCode(data []byte) (OpCode, error) {
	if len(data) < headerSize {
		return 0, fmt.Errorf("%w: %d bytes is shorter than the Art-Net header", ErrInvalidPacket, len(data))
	}
	if !bytes.Equal(data[:8], packetID) {
		return 0, fmt.Errorf("%w: missing Art-Net identifier", ErrInvalidPacket)
	}
	return OpCode(binary.LittleEndian.Uint16(data[8:10])), nil
}

// putHeader writes the identifier, opcode and protocol version.
func putHeader(buf []byte, op OpCode) {
	copy(buf, packetID)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(op))
	binary.BigEndian.PutUint16(buf[10:12], protocolVersion)
}

// checkHeader validates identifier and opcode for a versioned packet.
func checkHeader(data []byte, op OpCode, minLen int) error {
	got, err := PeekOpCode(data)
	if err != nil {
		return err
	}
	if got != op {
		return fmt.Errorf("%w: opcode %s, want %s", ErrInvalidPacket, got, op)
	}
	if len(data) < minLen {
		return fmt.Errorf("%w: %s needs at least %d bytes, got %d", ErrInvalidPacket, op, minLen, len(data))
	}
	return nil
}

// Poll is an ArtPoll discovery broadcast.
//
// Controllers broadcast it periodically; nodes answer with ArtPollReply.
// The target bounds restrict which port addresses should answer when
// targeted mode is enabled.
type Poll struct {
	// Targeted restricts replies to nodes within the target bounds.
	Targeted bool

	// VLC enables VLC transmission (unused by DMX Core, kept on the wire).
	VLC bool

	// DiagUnicast requests diagnostics as unicast rather than broadcast.
	DiagUnicast bool

	// Diagnostics asks nodes to send ArtDiagData messages.
	Diagnostics bool

	// NotifyOnChange asks nodes to send ArtPollReply without a poll
	// whenever their configuration changes.
	NotifyOnChange bool

	// DiagPriority is the lowest diagnostics priority of interest.
	DiagPriority uint8

	// TargetTop and TargetBottom bound the port addresses of interest.
	TargetTop    dmx.PortAddress
	TargetBottom dmx.PortAddress
}

// Encode serializes the ArtPoll packet.
func (p Poll) Encode() []byte {
	buf := make([]byte, versionedHeaderSize+6)
	putHeader(buf, OpPoll)

	var flags byte
	if p.Targeted {
		flags |= 1 << 5
	}
	if p.VLC {
		flags |= 1 << 4
	}
	if p.DiagUnicast {
		flags |= 1 << 3
	}
	if p.Diagnostics {
		flags |= 1 << 2
	}
	if p.NotifyOnChange {
		flags |= 1 << 1
	}
	buf[12] = flags
	buf[13] = p.DiagPriority
	binary.BigEndian.PutUint16(buf[14:16], p.TargetTop.Packed())
	binary.BigEndian.PutUint16(buf[16:18], p.TargetBottom.Packed())
	return buf
}

// DecodePoll parses an ArtPoll packet.
func DecodePoll(data []byte) (Poll, error) {
	if err := checkHeader(data, OpPoll, versionedHeaderSize+2); err != nil {
		return Poll{}, err
	}

	flags := data[12]
	p := Poll{
		Targeted:       flags&(1<<5) != 0,
		VLC:            flags&(1<<4) != 0,
		DiagUnicast:    flags&(1<<3) != 0,
		Diagnostics:    flags&(1<<2) != 0,
		NotifyOnChange: flags&(1<<1) != 0,
		DiagPriority:   data[13],
	}
	if len(data) >= versionedHeaderSize+6 {
		p.TargetTop = dmx.FromPacked(binary.BigEndian.Uint16(data[14:16]))
		p.TargetBottom = dmx.FromPacked(binary.BigEndian.Uint16(data[16:18]))
	}
	return p, nil
}

// PollReply is an ArtPollReply: a node's description of itself.
//
// ArtPollReply is the one Art-Net packet without a protocol version
// field. Only the fields DMX Core consumes or re-emits are modeled;
// trailing optional fields from newer revisions are ignored on decode
// and zero-filled on encode.
type PollReply struct {
	IP          [4]byte
	Port        uint16
	VersInfo    uint16
	NetSwitch   uint8
	SubSwitch   uint8
	Oem         uint16
	UbeaVersion uint8
	Status1     uint8
	EstaMan     uint16
	ShortName   string
	LongName    string
	NodeReport  string
	NumPorts    uint16
	PortTypes   [4]byte
	GoodInput   [4]byte
	GoodOutput  [4]byte
	SwIn        [4]byte
	SwOut       [4]byte
	AcnPriority uint8
	SwMacro     uint8
	SwRemote    uint8
	Style       uint8
	MAC         [6]byte
	BindIP      [4]byte
	BindIndex   uint8
	Status2     uint8
	GoodOutputB [4]byte
	Status3     uint8
}

// Port type flag bits in PortTypes.
const (
	// PortCanOutput marks a port that outputs DMX from the network.
	PortCanOutput = 1 << 7

	// PortCanInput marks a port that inputs DMX onto the network.
	PortCanInput = 1 << 6
)

// Node style codes.
const (
	StyleNode       = 0x00
	StyleController = 0x01
)

// Encode serializes the ArtPollReply packet.
func (r PollReply) Encode() []byte {
	buf := make([]byte, 218)
	copy(buf, packetID)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(OpPollReply))

	copy(buf[10:14], r.IP[:])
	binary.LittleEndian.PutUint16(buf[14:16], r.Port)
	binary.BigEndian.PutUint16(buf[16:18], r.VersInfo)
	buf[18] = r.NetSwitch
	buf[19] = r.SubSwitch
	binary.BigEndian.PutUint16(buf[20:22], r.Oem)
	buf[22] = r.UbeaVersion
	buf[23] = r.Status1
	binary.LittleEndian.PutUint16(buf[24:26], r.EstaMan)
	putPaddedString(buf[26:26+shortNameSize], r.ShortName)
	putPaddedString(buf[44:44+longNameSize], r.LongName)
	putPaddedString(buf[108:108+nodeReportSize], r.NodeReport)
	binary.BigEndian.PutUint16(buf[172:174], r.NumPorts)
	copy(buf[174:178], r.PortTypes[:])
	copy(buf[178:182], r.GoodInput[:])
	copy(buf[182:186], r.GoodOutput[:])
	copy(buf[186:190], r.SwIn[:])
	copy(buf[190:194], r.SwOut[:])
	buf[194] = r.AcnPriority
	buf[195] = r.SwMacro
	buf[196] = r.SwRemote
	// 197-199 spare
	buf[200] = r.Style
	copy(buf[201:207], r.MAC[:])
	copy(buf[207:211], r.BindIP[:])
	buf[211] = r.BindIndex
	buf[212] = r.Status2
	copy(buf[213:217], r.GoodOutputB[:])
	buf[217] = r.Status3
	return buf
}

// DecodePollReply parses an ArtPollReply packet.
func DecodePollReply(data []byte) (PollReply, error) {
	got, err := PeekOpCode(data)
	if err != nil {
		return PollReply{}, err
	}
	if got != OpPollReply {
		return PollReply{}, fmt.Errorf("%w: opcode %s, want %s", ErrInvalidPacket, got, OpPollReply)
	}
	if len(data) < pollReplyMinSize {
		return PollReply{}, fmt.Errorf(
			"%w: ArtPollReply needs at least %d bytes, got %d", ErrInvalidPacket, pollReplyMinSize, len(data))
	}

	var r PollReply
	copy(r.IP[:], data[10:14])
	r.Port = binary.LittleEndian.Uint16(data[14:16])
	r.VersInfo = binary.BigEndian.Uint16(data[16:18])
	r.NetSwitch = data[18]
	r.SubSwitch = data[19]
	r.Oem = binary.BigEndian.Uint16(data[20:22])
	r.UbeaVersion = data[22]
	r.Status1 = data[23]
	r.EstaMan = binary.LittleEndian.Uint16(data[24:26])
	r.ShortName = trimPadding(data[26 : 26+shortNameSize])
	r.LongName = trimPadding(data[44 : 44+longNameSize])
	r.NodeReport = trimPadding(data[108 : 108+nodeReportSize])
	r.NumPorts = binary.BigEndian.Uint16(data[172:174])
	copy(r.PortTypes[:], data[174:178])
	copy(r.GoodInput[:], data[178:182])
	copy(r.GoodOutput[:], data[182:186])
	copy(r.SwIn[:], data[186:190])
	copy(r.SwOut[:], data[190:194])
	r.AcnPriority = data[194]
	r.SwMacro = data[195]
	r.SwRemote = data[196]
	r.Style = data[200]
	copy(r.MAC[:], data[201:207])
	if len(data) >= 218 {
		copy(r.BindIP[:], data[207:211])
		r.BindIndex = data[211]
		r.Status2 = data[212]
		copy(r.GoodOutputB[:], data[213:217])
		r.Status3 = data[217]
	}
	return r, nil
}

// OutputAddresses returns the port addresses this node outputs DMX to,
// derived from the net/sub-net switches and the per-port SwOut values.
func (r PollReply) OutputAddresses() []dmx.PortAddress {
	return r.portAddresses(PortCanOutput, r.SwOut)
}

// InputAddresses returns the port addresses this node inputs DMX from.
func (r PollReply) InputAddresses() []dmx.PortAddress {
	return r.portAddresses(PortCanInput, r.SwIn)
}

func (r PollReply) portAddresses(flag byte, sw [4]byte) []dmx.PortAddress {
	n := int(r.NumPorts)
	if n > len(sw) {
		n = len(sw)
	}
	var addrs []dmx.PortAddress
	for i := 0; i < n; i++ {
		if r.PortTypes[i]&flag == 0 {
			continue
		}
		addrs = append(addrs, dmx.PortAddress{
			Net:      int(r.NetSwitch & 0xF),
			SubNet:   int(r.SubSwitch & 0xF),
			Universe: int(sw[i]),
		})
	}
	return addrs
}

// Dmx is an ArtDmx data packet carrying one universe frame.
type Dmx struct {
	// Sequence orders packets; 0 disables sequencing. Once enabled it
	// wraps 1 → 255 → 1.
	Sequence uint8

	// Physical is the physical input port the data originated from.
	Physical uint8

	// Address is the destination port address.
	Address dmx.PortAddress

	// Data holds 2-512 channel values; length must be even.
	Data []byte
}

// Encode serializes the ArtDmx packet.
//
// Returns:
//   - []byte: Encoded packet
//   - error: ErrPayloadTooLarge or ErrInvalidPacket for a bad payload length
func (d Dmx) Encode() ([]byte, error) {
	if len(d.Data) > dmx.UniverseSize {
		return nil, fmt.Errorf("%w: %d channels", ErrPayloadTooLarge, len(d.Data))
	}
	if len(d.Data) < 2 || len(d.Data)%2 != 0 {
		return nil, fmt.Errorf("%w: ArtDmx payload must be an even length of at least 2, got %d",
			ErrInvalidPacket, len(d.Data))
	}

	buf := make([]byte, versionedHeaderSize+6+len(d.Data))
	putHeader(buf, OpDmx)
	buf[12] = d.Sequence
	buf[13] = d.Physical
	// 15-bit port address, little-endian on the wire.
	packed := d.Address.Packed()
	buf[14] = byte(packed)
	buf[15] = byte(packed >> 8)
	binary.BigEndian.PutUint16(buf[16:18], uint16(len(d.Data))) //nolint:gosec // bounded above
	copy(buf[18:], d.Data)
	return buf, nil
}

// DecodeDmx parses an ArtDmx packet.
func DecodeDmx(data []byte) (Dmx, error) {
	if err := checkHeader(data, OpDmx, versionedHeaderSize+6); err != nil {
		return Dmx{}, err
	}

	length := int(binary.BigEndian.Uint16(data[16:18]))
	if length > dmx.UniverseSize {
		return Dmx{}, fmt.Errorf("%w: declared %d channels", ErrPayloadTooLarge, length)
	}
	if len(data) < versionedHeaderSize+6+length {
		return Dmx{}, fmt.Errorf("%w: ArtDmx declares %d data bytes but only %d present",
			ErrInvalidPacket, length, len(data)-versionedHeaderSize-6)
	}

	payload := make([]byte, length)
	copy(payload, data[18:18+length])
	return Dmx{
		Sequence: data[12],
		Physical: data[13],
		Address:  dmx.FromPacked(uint16(data[15])<<8 | uint16(data[14])),
		Data:     payload,
	}, nil
}

// Trigger is an ArtTrigger packet: a broadcast macro/event trigger.
type Trigger struct {
	Oem    uint16
	Key    uint8
	SubKey uint8
	Data   []byte
}

// Encode serializes the ArtTrigger packet.
func (t Trigger) Encode() []byte {
	buf := make([]byte, versionedHeaderSize+6+len(t.Data))
	putHeader(buf, OpTrigger)
	// 12-13 filler
	binary.BigEndian.PutUint16(buf[14:16], t.Oem)
	buf[16] = t.Key
	buf[17] = t.SubKey
	copy(buf[18:], t.Data)
	return buf
}

// DecodeTrigger parses an ArtTrigger packet.
func DecodeTrigger(data []byte) (Trigger, error) {
	if err := checkHeader(data, OpTrigger, versionedHeaderSize+6); err != nil {
		return Trigger{}, err
	}
	payload := make([]byte, len(data)-18)
	copy(payload, data[18:])
	return Trigger{
		Oem:    binary.BigEndian.Uint16(data[14:16]),
		Key:    data[16],
		SubKey: data[17],
		Data:   payload,
	}, nil
}

// Text decodes the trigger payload as text: UTF-8 when valid, with a
// latin-1 fallback for legacy consoles. Trailing NULs are stripped.
func (t Trigger) Text() string {
	data := bytes.TrimRight(t.Data, "\x00")
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// Command is an ArtCommand packet: a textual property exchange.
type Command struct {
	EstaMan uint16
	Text    string
}

// Encode serializes the ArtCommand packet.
func (c Command) Encode() []byte {
	text := []byte(c.Text)
	buf := make([]byte, versionedHeaderSize+4+len(text)+1)
	putHeader(buf, OpCommand)
	binary.BigEndian.PutUint16(buf[12:14], c.EstaMan)
	binary.BigEndian.PutUint16(buf[14:16], uint16(len(text)+1)) //nolint:gosec // UDP datagram bounded
	copy(buf[16:], text)
	return buf
}

// DecodeCommand parses an ArtCommand packet.
func DecodeCommand(data []byte) (Command, error) {
	if err := checkHeader(data, OpCommand, versionedHeaderSize+4); err != nil {
		return Command{}, err
	}
	length := int(binary.BigEndian.Uint16(data[14:16]))
	if length > len(data)-16 {
		length = len(data) - 16
	}
	return Command{
		EstaMan: binary.BigEndian.Uint16(data[12:14]),
		Text:    trimPadding(data[16 : 16+length]),
	}, nil
}

// DiagData is an ArtDiagData packet carrying a diagnostics message.
type DiagData struct {
	Priority uint8
	Text     string
}

// Encode serializes the ArtDiagData packet.
func (d DiagData) Encode() []byte {
	text := []byte(d.Text)
	buf := make([]byte, versionedHeaderSize+6+len(text)+1)
	putHeader(buf, OpDiagData)
	// 12 filler
	buf[13] = d.Priority
	// 14-15 filler
	binary.BigEndian.PutUint16(buf[16:18], uint16(len(text)+1)) //nolint:gosec // UDP datagram bounded
	copy(buf[18:], text)
	return buf
}

// DecodeDiagData parses an ArtDiagData packet.
func DecodeDiagData(data []byte) (DiagData, error) {
	if err := checkHeader(data, OpDiagData, versionedHeaderSize+6); err != nil {
		return DiagData{}, err
	}
	length := int(binary.BigEndian.Uint16(data[16:18]))
	if length > len(data)-18 {
		length = len(data) - 18
	}
	return DiagData{
		Priority: data[13],
		Text:     trimPadding(data[18 : 18+length]),
	}, nil
}

// TimeCode is an ArtTimeCode packet distributing show time.
type TimeCode struct {
	Frames  uint8
	Seconds uint8
	Minutes uint8
	Hours   uint8
	Type    uint8 // 0=film 1=EBU 2=DF 3=SMPTE
}

// DecodeTimeCode parses an ArtTimeCode packet.
func DecodeTimeCode(data []byte) (TimeCode, error) {
	if err := checkHeader(data, OpTimeCode, versionedHeaderSize+7); err != nil {
		return TimeCode{}, err
	}
	return TimeCode{
		Frames:  data[14],
		Seconds: data[15],
		Minutes: data[16],
		Hours:   data[17],
		Type:    data[18],
	}, nil
}

// IpProgReply is an ArtIpProgReply packet reporting a node's IP
// programming state. DMX Core decodes it for diagnostics only.
type IpProgReply struct {
	ProgIP   [4]byte
	ProgSM   [4]byte
	ProgPort uint16
	Status   uint8
}

// DecodeIpProgReply parses an ArtIpProgReply packet.
func DecodeIpProgReply(data []byte) (IpProgReply, error) {
	if err := checkHeader(data, OpIpProgReply, versionedHeaderSize+15); err != nil {
		return IpProgReply{}, err
	}
	var r IpProgReply
	copy(r.ProgIP[:], data[16:20])
	copy(r.ProgSM[:], data[20:24])
	r.ProgPort = binary.BigEndian.Uint16(data[24:26])
	r.Status = data[26]
	return r, nil
}

// EncodeSync serializes an ArtSync packet, used to latch buffered
// ArtDmx frames across universes simultaneously.
func EncodeSync() []byte {
	buf := make([]byte, versionedHeaderSize+2)
	putHeader(buf, OpSync)
	return buf
}

// putPaddedString writes s into dst, NUL padded and truncated to leave
// room for the terminator.
func putPaddedString(dst []byte, s string) {
	b := []byte(s)
	if len(b) > len(dst)-1 {
		b = b[:len(dst)-1]
	}
	copy(dst, b)
}

// trimPadding returns the string up to the first NUL.
func trimPadding(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}
