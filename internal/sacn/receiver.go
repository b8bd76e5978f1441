package sacn

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv4"

	"github.com/nerrad567/dmx-core/internal/dmx"
	"github.com/nerrad567/dmx-core/internal/infrastructure/logging"
)

// startCodePerAddressPriority is the E1.31 alternate start code for
// per-address priority data, which this receiver intentionally drops.
const startCodePerAddressPriority = 0xDD

// sequenceDropWindow follows E1.31: a packet whose sequence lags the
// previous one by up to 20 is stale and is discarded.
const sequenceDropWindow = 20

// DataHandler receives decoded DMX frames from subscribed universes.
type DataHandler func(addr dmx.PortAddress, data []byte, source string)

// ReceiverOptions configures the sACN receiver.
type ReceiverOptions struct {
	// InterfaceName selects the network interface for multicast
	// joins; empty uses the system default.
	InterfaceName string

	// OwnSourceName filters out this process's own transmissions
	// looped back by the network stack.
	OwnSourceName string

	// OnData receives decoded frames.
	OnData DataHandler

	// Logger is optional.
	Logger *logging.Logger
}

// Receiver listens for E1.31 data on subscribed universes. One socket
// is shared by every subscription; each Subscribe joins that
// universe's multicast group.
type Receiver struct {
	opts  ReceiverOptions
	log   *logging.Logger
	iface *net.Interface

	conn  *net.UDPConn
	pconn *ipv4.PacketConn

	mu         sync.Mutex
	subscribed map[uint16]struct{}
	lastSeq    map[sourceKey]uint8

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// sourceKey tracks sequence numbers per sending component and
// universe so two sources never corrupt each other's loss window.
type sourceKey struct {
	cid      [16]byte
	universe uint16
}

// NewReceiver creates an sACN receiver. Call Start to bind the socket.
func NewReceiver(opts ReceiverOptions) (*Receiver, error) {
	r := &Receiver{
		opts:       opts,
		log:        opts.Logger,
		subscribed: make(map[uint16]struct{}),
		lastSeq:    make(map[sourceKey]uint8),
	}

	if opts.InterfaceName != "" {
		iface, err := net.InterfaceByName(opts.InterfaceName)
		if err != nil {
			return nil, fmt.Errorf("sacn: looking up interface %q: %w", opts.InterfaceName, err)
		}
		r.iface = iface
	}
	return r, nil
}

// Start binds the receive socket and launches the read loop.
func (r *Receiver) Start(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: UDPPort})
	if err != nil {
		return fmt.Errorf("sacn: binding receive port %d: %w", UDPPort, err)
	}
	r.conn = conn
	r.pconn = ipv4.NewPacketConn(conn)
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.receiveLoop()

	r.logInfo("sACN receiver started", "interface", r.opts.InterfaceName)
	return nil
}

// Stop leaves all groups, closes the socket and waits for the read
// loop. Safe to call more than once.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}

		r.mu.Lock()
		for universe := range r.subscribed {
			r.leaveGroupLocked(universe)
		}
		r.subscribed = make(map[uint16]struct{})
		r.mu.Unlock()

		if r.conn != nil {
			r.conn.Close() //nolint:errcheck // Read loop handles the close
		}
		r.wg.Wait()
		r.logInfo("sACN receiver stopped")
	})
}

// Subscribe joins a universe's multicast group and begins forwarding
// its frames. Subscribing twice is a no-op.
func (r *Receiver) Subscribe(universe int) error {
	if !ValidUniverse(universe) {
		return fmt.Errorf("%w: got %d", ErrInvalidUniverse, universe)
	}
	if r.pconn == nil {
		return ErrNotRunning
	}
	id := uint16(universe)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribed[id]; ok {
		return nil
	}

	group := &net.UDPAddr{IP: MulticastGroup(id)}
	if err := r.pconn.JoinGroup(r.iface, group); err != nil {
		return fmt.Errorf("sacn: joining group %s for universe %d: %w", group.IP, universe, err)
	}
	r.subscribed[id] = struct{}{}

	r.logInfo("subscribed to sACN universe", "universe", universe, "group", group.IP.String())
	return nil
}

// Unsubscribe leaves a universe's multicast group.
func (r *Receiver) Unsubscribe(universe int) error {
	if !ValidUniverse(universe) {
		return fmt.Errorf("%w: got %d", ErrInvalidUniverse, universe)
	}
	id := uint16(universe)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribed[id]; !ok {
		return nil
	}
	r.leaveGroupLocked(id)
	delete(r.subscribed, id)
	return nil
}

func (r *Receiver) leaveGroupLocked(universe uint16) {
	group := &net.UDPAddr{IP: MulticastGroup(universe)}
	if err := r.pconn.LeaveGroup(r.iface, group); err != nil {
		r.logWarn("leaving multicast group", "universe", universe, "error", err)
	}
}

// receiveLoop reads datagrams until the socket closes.
func (r *Receiver) receiveLoop() {
	defer r.wg.Done()

	buf := make([]byte, 1024)
	for {
		n, src, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.ctx.Done():
				return
			default:
			}
			r.logError("sACN read failed", "error", err)
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		r.handlePacket(data, src)
	}
}

// handlePacket decodes and filters one datagram.
func (r *Receiver) handlePacket(data []byte, src *net.UDPAddr) {
	packet, err := DecodeDataPacket(data)
	if err != nil {
		r.logDebug("dropping undecodable sACN datagram", "from", src.String(), "error", err)
		return
	}

	if !r.accept(packet) {
		return
	}

	if r.opts.OnData != nil {
		r.opts.OnData(dmx.SacnPortAddress(int(packet.Universe)), packet.Data, packet.SourceName)
	}
}

// accept applies the receive filters: subscription, own-source
// loopback, alternate start codes and the E1.31 sequence window.
func (r *Receiver) accept(packet DataPacket) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscribed[packet.Universe]; !ok {
		return false
	}
	if r.opts.OwnSourceName != "" && packet.SourceName == r.opts.OwnSourceName {
		return false
	}
	if packet.StartCode != 0 {
		if packet.StartCode == startCodePerAddressPriority {
			r.logDebug("ignoring per-address priority packet", "universe", packet.Universe)
		}
		return false
	}

	key := sourceKey{cid: packet.CID, universe: packet.Universe}
	if last, seen := r.lastSeq[key]; seen {
		diff := int8(packet.Sequence - last)
		if diff <= 0 && diff > -sequenceDropWindow {
			r.logDebug("dropping out-of-sequence packet",
				"universe", packet.Universe,
				"sequence", packet.Sequence,
				"last", last,
			)
			return false
		}
	}
	r.lastSeq[key] = packet.Sequence

	if packet.Terminated {
		delete(r.lastSeq, key)
		return false
	}
	return true
}

func (r *Receiver) logDebug(msg string, args ...any) {
	if r.log != nil {
		r.log.Debug(msg, args...)
	}
}

func (r *Receiver) logInfo(msg string, args ...any) {
	if r.log != nil {
		r.log.Info(msg, args...)
	}
}

func (r *Receiver) logWarn(msg string, args ...any) {
	if r.log != nil {
		r.log.Warn(msg, args...)
	}
}

func (r *Receiver) logError(msg string, args ...any) {
	if r.log != nil {
		r.log.Error(msg, args...)
	}
}
