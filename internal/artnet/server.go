package artnet

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nerrad567/dmx-core/internal/dmx"
	"github.com/nerrad567/dmx-core/internal/infrastructure/logging"
)

// Server timing constants.
const (
	// pollIntervalBase and pollIntervalJitter produce the randomized
	// 2.5-3.0s ArtPoll cadence. The jitter avoids synchronized bursts
	// when several controllers share a network.
	pollIntervalBase   = 2500 * time.Millisecond
	pollIntervalJitter = 500 * time.Millisecond

	// staleNodeCutoff is how long a node may stay silent before it is
	// evicted. The sweep runs this long after each poll.
	staleNodeCutoff = 10 * time.Second

	// discoveryGrace is the startup window during which a missing node
	// is expected rather than an error.
	discoveryGrace = 3 * time.Second

	// inputActiveTimeout clears the input-active flag after the last
	// inbound ArtDmx packet.
	inputActiveTimeout = 4 * time.Second

	// maxDatagramSize bounds inbound reads; the largest legal Art-Net
	// packet (ArtDmx with 512 channels) is 530 bytes.
	maxDatagramSize = 1024
)

// SendOutcome is the typed result of SendDmx.
type SendOutcome int

const (
	// SendStarted means a retransmit loop now owns the frame.
	SendStarted SendOutcome = iota

	// SendNotReady means no node (discovered or manual) is registered
	// for the port address; the frame was dropped and will be retried
	// naturally on the next update.
	SendNotReady
)

// NodeEventType classifies node lifecycle events.
type NodeEventType int

const (
	// NodeDiscovered fires on the first ArtPollReply from a node.
	NodeDiscovered NodeEventType = iota

	// NodeUpdated fires on every subsequent reply.
	NodeUpdated

	// NodeLost fires when a node goes stale or stops advertising an
	// address; one event per previously-advertised address.
	NodeLost
)

// String returns the event type name.
func (t NodeEventType) String() string {
	switch t {
	case NodeDiscovered:
		return "discovered"
	case NodeUpdated:
		return "updated"
	case NodeLost:
		return "lost"
	default:
		return fmt.Sprintf("NodeEventType(%d)", int(t))
	}
}

// NodeEvent describes a node lifecycle transition.
type NodeEvent struct {
	Type NodeEventType
	Node Node

	// Address is set on NodeLost events: the port address that was
	// unregistered. Zero for discovery/update events.
	Address dmx.PortAddress
}

// DataHandler receives inbound DMX data from nodes acting as inputs.
type DataHandler func(addr dmx.PortAddress, data []byte, source string)

// TriggerHandler receives decoded ArtTrigger events.
type TriggerHandler func(key, subKey uint8, text string)

// NodeHandler receives node lifecycle events.
type NodeHandler func(event NodeEvent)

// ServerOptions configures an Art-Net server.
type ServerOptions struct {
	// BindAddress is the local IP to bind; empty binds all interfaces.
	BindAddress string

	// BroadcastAddress is where ArtPoll is sent. Defaults to the
	// limited broadcast address; set the subnet broadcast on routed
	// networks.
	BroadcastAddress string

	// ShortName and LongName identify this controller in ArtPollReply.
	// ShortName is also used to drop our own replies off the wire.
	ShortName string
	LongName  string

	// TargetBottom and TargetTop bound the port addresses polled.
	TargetBottom dmx.PortAddress
	TargetTop    dmx.PortAddress

	// RetransmitInterval paces the per-universe resend loop.
	// Zero means send-once mode.
	RetransmitInterval time.Duration

	// Diagnostics requests ArtDiagData from polled nodes.
	Diagnostics bool

	// OnData, OnTrigger and OnNodeEvent are optional callbacks.
	OnData      DataHandler
	OnTrigger   TriggerHandler
	OnNodeEvent NodeHandler

	// Logger is optional.
	Logger *logging.Logger
}

// Server is the Art-Net protocol server: it owns the UDP socket, the
// discovery loop, the node registry and one retransmit loop per
// configured port address.
type Server struct {
	opts      ServerOptions
	log       *logging.Logger
	broadcast *net.UDPAddr

	conn   *net.UDPConn
	connMu sync.Mutex

	nodes *nodeRegistry

	manualMu sync.Mutex
	manual   map[dmx.PortAddress][]*net.UDPAddr

	portsMu  sync.Mutex
	ownPorts map[dmx.PortAddress]*ownPort

	inputMu     sync.Mutex
	inputActive bool
	inputTimer  *time.Timer

	statusMu   sync.Mutex
	lastStatus string

	startedAt time.Time

	framesSent      atomic.Uint64
	packetsReceived atomic.Uint64
	pollsSent       atomic.Uint64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// ownPort is the transmission state of one configured port address.
// Starting a new send cancels and replaces the address's running loop;
// the sequence counter survives loop replacement.
type ownPort struct {
	addr     dmx.PortAddress
	frame    []byte
	sequence uint8
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewServer creates an Art-Net server. Call Start to bind the socket
// and begin discovery.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.BroadcastAddress == "" {
		opts.BroadcastAddress = "255.255.255.255"
	}
	if opts.ShortName == "" {
		opts.ShortName = "dmx-core"
	}
	if opts.LongName == "" {
		opts.LongName = "DMX Core Art-Net controller"
	}

	broadcastIP := net.ParseIP(opts.BroadcastAddress)
	if broadcastIP == nil {
		return nil, fmt.Errorf("%w: bad broadcast address %q", ErrInvalidPacket, opts.BroadcastAddress)
	}

	return &Server{
		opts:      opts,
		log:       opts.Logger,
		broadcast: &net.UDPAddr{IP: broadcastIP, Port: UDPPort},
		nodes:     newNodeRegistry(),
		manual:    make(map[dmx.PortAddress][]*net.UDPAddr),
		ownPorts:  make(map[dmx.PortAddress]*ownPort),
	}, nil
}

// Start binds the Art-Net socket and launches the receive and poll
// loops. A bind failure is fatal to this protocol server only.
func (s *Server) Start(ctx context.Context) error {
	var bindIP net.IP
	if s.opts.BindAddress != "" {
		bindIP = net.ParseIP(s.opts.BindAddress)
		if bindIP == nil {
			return fmt.Errorf("artnet: bad bind address %q", s.opts.BindAddress)
		}
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				// ArtPoll goes to the broadcast address.
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	bindHost := ""
	if bindIP != nil {
		bindHost = bindIP.String()
	}
	pc, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort(bindHost, fmt.Sprintf("%d", UDPPort)))
	if err != nil {
		return fmt.Errorf("artnet: binding UDP port %d: %w", UDPPort, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("artnet: unexpected packet conn type %T", pc)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startedAt = time.Now()

	s.wg.Add(2)
	go s.receiveLoop()
	go s.pollLoop()

	s.logInfo("Art-Net server started",
		"bind", s.opts.BindAddress,
		"broadcast", s.opts.BroadcastAddress,
	)
	return nil
}

// Stop shuts the server down: cancels every loop, closes the socket
// and waits for goroutines to exit. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		s.portsMu.Lock()
		for _, op := range s.ownPorts {
			if op.cancel != nil {
				op.cancel()
			}
		}
		s.portsMu.Unlock()

		s.connMu.Lock()
		if s.conn != nil {
			s.conn.Close() //nolint:errcheck // Read loop handles the close
		}
		s.connMu.Unlock()

		s.wg.Wait()
		s.logInfo("Art-Net server stopped")
	})
}

// AddManualNode registers a static unicast target for a port address,
// bypassing discovery.
func (s *Server) AddManualNode(addr dmx.PortAddress, host string, port int) error {
	if port == 0 {
		port = UDPPort
	}
	udpAddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return fmt.Errorf("artnet: resolving manual node %s: %w", host, err)
	}

	s.manualMu.Lock()
	s.manual[addr] = append(s.manual[addr], udpAddr)
	s.manualMu.Unlock()

	s.logInfo("manual node added", "universe", addr.String(), "target", udpAddr.String())
	return nil
}

// SendDmx queues a frame for a port address and (re)starts its
// retransmit loop.
//
// When no discovered or manual node is registered for the address the
// frame is dropped: within the first 3 seconds of uptime this is a
// routine discovery race, afterwards it is logged as an error. Either
// way the outcome is SendNotReady and the caller retries naturally on
// the next frame-triggering update.
func (s *Server) SendDmx(addr dmx.PortAddress, data []byte) (SendOutcome, error) {
	if len(data) > dmx.UniverseSize {
		return SendNotReady, fmt.Errorf("%w: %d channels", ErrPayloadTooLarge, len(data))
	}

	frame := make([]byte, len(data))
	copy(frame, data)

	if !s.hasTargets(addr) {
		if time.Since(s.startedAt) < discoveryGrace {
			s.logDebug("no nodes yet for universe, still in discovery grace", "universe", addr.String())
		} else {
			s.setStatus(fmt.Sprintf("No Art-Net node for universe %s", addr))
			s.logError("no Art-Net node registered for universe", "universe", addr.String())
		}
		return SendNotReady, nil
	}

	s.portsMu.Lock()
	op, ok := s.ownPorts[addr]
	if !ok {
		op = &ownPort{addr: addr}
		s.ownPorts[addr] = op
	}
	op.frame = frame
	// Replace the running loop: last writer wins per address.
	prevCancel := op.cancel
	prevDone := op.done

	loopCtx, loopCancel := context.WithCancel(s.ctx)
	op.cancel = loopCancel
	op.done = make(chan struct{})
	done := op.done
	s.portsMu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	s.wg.Add(1)
	go s.retransmitLoop(loopCtx, op, frame, done)

	return SendStarted, nil
}

// retransmitLoop serializes and re-sends one frame until it is
// replaced, cancelled, or every node for the address disappears.
func (s *Server) retransmitLoop(ctx context.Context, op *ownPort, frame []byte, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	for {
		targets := s.targetsFor(op.addr)
		if len(targets) == 0 {
			s.logDebug("no remaining nodes for universe, stopping retransmit", "universe", op.addr.String())
			return
		}

		s.portsMu.Lock()
		op.sequence = nextSequence(op.sequence)
		seq := op.sequence
		s.portsMu.Unlock()

		packet, err := Dmx{
			Sequence: seq,
			Address:  op.addr,
			Data:     frame,
		}.Encode()
		if err != nil {
			s.logError("encoding ArtDmx", "universe", op.addr.String(), "error", err)
			return
		}

		for _, target := range targets {
			s.writeTo(packet, target)
		}
		s.framesSent.Add(1)

		if s.opts.RetransmitInterval <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.RetransmitInterval):
		}
	}
}

// nextSequence advances an ArtDmx sequence number: 1 → 255 then wraps
// back to 1, never revisiting 0 once sequencing has begun.
func nextSequence(n uint8) uint8 {
	n++
	if n == 0 {
		n = 1
	}
	return n
}

// hasTargets reports whether any discovered or manual node serves addr.
func (s *Server) hasTargets(addr dmx.PortAddress) bool {
	return len(s.targetsFor(addr)) > 0
}

// targetsFor collects every destination for a port address.
func (s *Server) targetsFor(addr dmx.PortAddress) []*net.UDPAddr {
	targets := s.nodes.targetsFor(addr)
	s.manualMu.Lock()
	targets = append(targets, s.manual[addr]...)
	s.manualMu.Unlock()
	return targets
}

// pollLoop broadcasts ArtPoll every 2.5-3.0 seconds and schedules a
// stale-node sweep 10 seconds after each poll.
func (s *Server) pollLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(pollIntervalBase + time.Duration(rand.Int63n(int64(pollIntervalJitter)))):
		}

		s.sendPoll()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			select {
			case <-s.ctx.Done():
			case <-time.After(staleNodeCutoff):
				s.evictStale(time.Now().Add(-staleNodeCutoff))
			}
		}()
	}
}

// sendPoll broadcasts a single ArtPoll restricted to the configured
// port-address bounds.
func (s *Server) sendPoll() {
	poll := Poll{
		Targeted:       true,
		Diagnostics:    s.opts.Diagnostics,
		NotifyOnChange: true,
		TargetTop:      s.opts.TargetTop,
		TargetBottom:   s.opts.TargetBottom,
	}
	s.writeTo(poll.Encode(), s.broadcast)
	s.pollsSent.Add(1)
}

// evictStale removes nodes silent since before cutoff and fires one
// NodeLost event per address each evicted node advertised.
func (s *Server) evictStale(cutoff time.Time) {
	for _, node := range s.nodes.removeStale(cutoff) {
		s.logInfo("Art-Net node went stale",
			"node", node.Name,
			"ip", node.IP.String(),
			"bind_index", node.BindIndex,
		)
		s.fireNodeLost(node, node.Addresses)
	}
}

// fireNodeLost emits NodeLost once per address. A node with no
// advertised addresses still produces a single event.
func (s *Server) fireNodeLost(node *Node, addresses []dmx.PortAddress) {
	if s.opts.OnNodeEvent == nil {
		return
	}
	if len(addresses) == 0 {
		s.opts.OnNodeEvent(NodeEvent{Type: NodeLost, Node: *node})
		return
	}
	for _, addr := range addresses {
		s.opts.OnNodeEvent(NodeEvent{Type: NodeLost, Node: *node, Address: addr})
	}
}

// receiveLoop reads datagrams until the socket closes.
func (s *Server) receiveLoop() {
	defer s.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			s.logError("Art-Net read failed", "error", err)
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.packetsReceived.Add(1)
		s.handlePacket(data, src)
	}
}

// handlePacket dispatches one datagram by opcode. Malformed packets
// are logged and dropped; unknown opcodes are logged at warning level.
func (s *Server) handlePacket(data []byte, src *net.UDPAddr) {
	op, err := PeekOpCode(data)
	if err != nil {
		s.logDebug("dropping non-Art-Net datagram", "from", src.String(), "error", err)
		return
	}

	switch op {
	case OpPollReply:
		s.handlePollReply(data, src)
	case OpDmx:
		s.handleDmx(data, src)
	case OpPoll:
		s.handlePoll(data, src)
	case OpTrigger:
		s.handleTrigger(data, src)
	case OpCommand:
		s.handleCommand(data, src)
	case OpDiagData:
		s.handleDiagData(data, src)
	case OpTimeCode:
		s.handleTimeCode(data, src)
	case OpIpProgReply:
		s.handleIpProgReply(data, src)
	case OpSync:
		s.logDebug("ArtSync received", "from", src.String())
	default:
		s.logWarn("ignoring unknown Art-Net opcode", "opcode", op.String(), "from", src.String())
	}
}

// handlePollReply updates the node registry and fires lifecycle events.
func (s *Server) handlePollReply(data []byte, src *net.UDPAddr) {
	reply, err := DecodePollReply(data)
	if err != nil {
		s.logWarn("dropping malformed ArtPollReply", "from", src.String(), "error", err)
		return
	}

	// Our own broadcast reply loops back; don't register ourselves.
	if reply.ShortName == s.opts.ShortName {
		return
	}

	node, isNew, diff := s.nodes.upsert(src.IP, reply, time.Now())

	if isNew {
		s.logInfo("Art-Net node discovered",
			"node", node.Name,
			"ip", src.IP.String(),
			"bind_index", node.BindIndex,
			"addresses", len(node.Addresses),
		)
		if s.opts.OnNodeEvent != nil {
			s.opts.OnNodeEvent(NodeEvent{Type: NodeDiscovered, Node: *node})
		}
	} else {
		if s.opts.OnNodeEvent != nil {
			s.opts.OnNodeEvent(NodeEvent{Type: NodeUpdated, Node: *node})
		}
	}

	if len(diff.removed) > 0 && len(node.Addresses) == 0 {
		s.fireNodeLost(node, diff.removed)
	}

	// A node that just started advertising an address we already have
	// data queued for should receive that data right away instead of
	// waiting for the next update.
	if len(diff.added) > 0 && time.Since(s.startedAt) > discoveryGrace {
		s.resendQueuedTo(node, diff.added)
	}
}

// resendQueuedTo pushes the current frame of each newly-advertised
// address directly to one node, so it does not sit dark until the next
// retransmit tick.
func (s *Server) resendQueuedTo(node *Node, addresses []dmx.PortAddress) {
	target := &net.UDPAddr{IP: node.IP, Port: UDPPort}
	if node.Port != 0 {
		target.Port = int(node.Port)
	}

	for _, addr := range addresses {
		s.portsMu.Lock()
		op, ok := s.ownPorts[addr]
		var frame []byte
		var seq uint8
		if ok && op.frame != nil {
			frame = op.frame
			op.sequence = nextSequence(op.sequence)
			seq = op.sequence
		}
		s.portsMu.Unlock()
		if frame == nil {
			continue
		}

		packet, err := Dmx{Sequence: seq, Address: addr, Data: frame}.Encode()
		if err != nil {
			s.logError("encoding ArtDmx for joined node", "universe", addr.String(), "error", err)
			continue
		}
		s.writeTo(packet, target)
		s.framesSent.Add(1)
		s.logDebug("sent queued frame to joined node", "universe", addr.String(), "node", node.Name)
	}
}

// handleDmx processes inbound DMX data from a node acting as input.
func (s *Server) handleDmx(data []byte, src *net.UDPAddr) {
	packet, err := DecodeDmx(data)
	if err != nil {
		s.logWarn("dropping malformed ArtDmx", "from", src.String(), "error", err)
		return
	}

	s.markInputActive()

	if s.opts.OnData != nil {
		s.opts.OnData(packet.Address, packet.Data, s.nodes.nameFor(src.IP))
	}
}

// markInputActive raises the input-active flag and arms the 4 second
// silence timer that clears it.
func (s *Server) markInputActive() {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()

	s.inputActive = true
	if s.inputTimer != nil {
		s.inputTimer.Stop()
	}
	s.inputTimer = time.AfterFunc(inputActiveTimeout, func() {
		s.inputMu.Lock()
		s.inputActive = false
		s.inputMu.Unlock()
	})
}

// InputActive reports whether inbound ArtDmx arrived within the last
// 4 seconds.
func (s *Server) InputActive() bool {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.inputActive
}

// handlePoll answers a peer controller's ArtPoll with an immediate
// unicast ArtPollReply, plus diagnostics when requested.
func (s *Server) handlePoll(data []byte, src *net.UDPAddr) {
	poll, err := DecodePoll(data)
	if err != nil {
		s.logWarn("dropping malformed ArtPoll", "from", src.String(), "error", err)
		return
	}

	s.writeTo(s.buildPollReply().Encode(), src)

	if poll.Diagnostics {
		if status := s.status(); status != "" {
			s.writeTo(DiagData{Priority: poll.DiagPriority, Text: status}.Encode(), src)
		}
	}
}

// buildPollReply describes this controller.
func (s *Server) buildPollReply() PollReply {
	var ip [4]byte
	if parsed := net.ParseIP(s.opts.BindAddress); parsed != nil {
		if v4 := parsed.To4(); v4 != nil {
			copy(ip[:], v4)
		}
	}
	return PollReply{
		IP:         ip,
		Port:       UDPPort,
		ShortName:  s.opts.ShortName,
		LongName:   s.opts.LongName,
		NodeReport: s.status(),
		Style:      StyleController,
	}
}

func (s *Server) handleTrigger(data []byte, src *net.UDPAddr) {
	trigger, err := DecodeTrigger(data)
	if err != nil {
		s.logWarn("dropping malformed ArtTrigger", "from", src.String(), "error", err)
		return
	}

	text := trigger.Text()
	s.logInfo("ArtTrigger received",
		"key", trigger.Key,
		"sub_key", trigger.SubKey,
		"text", text,
		"from", src.String(),
	)
	if s.opts.OnTrigger != nil {
		s.opts.OnTrigger(trigger.Key, trigger.SubKey, text)
	}
}

func (s *Server) handleCommand(data []byte, src *net.UDPAddr) {
	cmd, err := DecodeCommand(data)
	if err != nil {
		s.logWarn("dropping malformed ArtCommand", "from", src.String(), "error", err)
		return
	}
	s.logInfo("ArtCommand received", "text", cmd.Text, "from", src.String())
}

func (s *Server) handleDiagData(data []byte, src *net.UDPAddr) {
	diag, err := DecodeDiagData(data)
	if err != nil {
		s.logWarn("dropping malformed ArtDiagData", "from", src.String(), "error", err)
		return
	}
	s.logInfo("node diagnostics",
		"from", src.String(),
		"priority", diag.Priority,
		"text", diag.Text,
	)
}

func (s *Server) handleTimeCode(data []byte, src *net.UDPAddr) {
	tc, err := DecodeTimeCode(data)
	if err != nil {
		s.logWarn("dropping malformed ArtTimeCode", "from", src.String(), "error", err)
		return
	}
	s.logDebug("ArtTimeCode received",
		"time", fmt.Sprintf("%02d:%02d:%02d.%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames),
		"type", tc.Type,
	)
}

func (s *Server) handleIpProgReply(data []byte, src *net.UDPAddr) {
	reply, err := DecodeIpProgReply(data)
	if err != nil {
		s.logWarn("dropping malformed ArtIpProgReply", "from", src.String(), "error", err)
		return
	}
	s.logDebug("ArtIpProgReply received",
		"from", src.String(),
		"prog_ip", net.IP(reply.ProgIP[:]).String(),
	)
}

// writeTo sends one datagram, logging failures without propagating
// them; UDP send errors are not actionable mid-loop.
func (s *Server) writeTo(packet []byte, target *net.UDPAddr) {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return
	}
	if _, err := conn.WriteToUDP(packet, target); err != nil {
		s.logDebug("UDP send failed", "target", target.String(), "error", err)
	}
}

// Nodes returns a snapshot of all discovered nodes.
func (s *Server) Nodes() []*Node {
	return s.nodes.all()
}

// Stats reports server counters for telemetry.
type Stats struct {
	Nodes           int
	FramesSent      uint64
	PacketsReceived uint64
	PollsSent       uint64
}

// GetStats returns current counters.
func (s *Server) GetStats() Stats {
	return Stats{
		Nodes:           s.nodes.count(),
		FramesSent:      s.framesSent.Load(),
		PacketsReceived: s.packetsReceived.Load(),
		PollsSent:       s.pollsSent.Load(),
	}
}

func (s *Server) setStatus(msg string) {
	s.statusMu.Lock()
	s.lastStatus = msg
	s.statusMu.Unlock()
}

func (s *Server) status() string {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.lastStatus
}

func (s *Server) logDebug(msg string, args ...any) {
	if s.log != nil {
		s.log.Debug(msg, args...)
	}
}

func (s *Server) logInfo(msg string, args ...any) {
	if s.log != nil {
		s.log.Info(msg, args...)
	}
}

func (s *Server) logWarn(msg string, args ...any) {
	if s.log != nil {
		s.log.Warn(msg, args...)
	}
}

func (s *Server) logError(msg string, args ...any) {
	if s.log != nil {
		s.log.Error(msg, args...)
	}
}
