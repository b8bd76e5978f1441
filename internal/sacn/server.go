package sacn

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/dmx-core/internal/dmx"
	"github.com/nerrad567/dmx-core/internal/infrastructure/logging"
)

// defaultKeepAlive is the E1.31 keep-alive retransmit interval: null
// changes are re-sent at this cadence so receivers do not time the
// source out.
const defaultKeepAlive = 800 * time.Millisecond

// terminationRepeats is how many terminated-flag packets are sent when
// a universe shuts down; E1.31 recommends three for loss tolerance.
const terminationRepeats = 3

// ServerOptions configures the sACN sending server.
type ServerOptions struct {
	// BindAddress is the local IP to bind; empty binds all interfaces.
	BindAddress string

	// SourceName identifies this sender in the framing layer, up to
	// 64 bytes.
	SourceName string

	// CID is the sender's component identifier; zero means generate
	// one.
	CID uuid.UUID

	// Priority is the framing-layer priority, 0-200. Zero selects the
	// E1.31 default of 100.
	Priority uint8

	// MulticastTTL bounds multicast propagation. Zero selects 1.
	MulticastTTL int

	// KeepAliveInterval paces per-universe retransmission. Zero
	// selects the 800ms E1.31 default; negative disables keep-alive.
	KeepAliveInterval time.Duration

	// Preview marks all output as preview data.
	Preview bool

	// SyncAddress, when nonzero, stamps data packets with a
	// synchronization universe and enables SendSync.
	SyncAddress uint16

	// Logger is optional.
	Logger *logging.Logger
}

// Server transmits DMX universes over E1.31, multicast by default or
// unicast per universe.
type Server struct {
	opts ServerOptions
	log  *logging.Logger
	cid  [16]byte

	conn   *net.UDPConn
	sendMu sync.Mutex

	mu        sync.Mutex
	universes map[uint16]*universeState
	syncSeq   uint8

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// universeState tracks one configured universe. lastData is the frame
// the keep-alive loop re-sends; terminated makes TerminateUniverse
// idempotent.
type universeState struct {
	mu         sync.Mutex
	universe   uint16
	sequence   uint8
	lastData   []byte
	target     *net.UDPAddr
	terminated bool
	cancel     context.CancelFunc
}

// NewServer creates an sACN server. Call Start before adding
// universes.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.SourceName == "" {
		opts.SourceName = "dmx-core"
	}
	if len(opts.SourceName) > sourceNameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrSourceNameTooLong, len(opts.SourceName))
	}
	if opts.Priority == 0 {
		opts.Priority = DefaultPriority
	}
	if opts.Priority > MaxPriority {
		return nil, fmt.Errorf("%w: got %d", ErrPriorityOutOfRange, opts.Priority)
	}
	if opts.CID == (uuid.UUID{}) {
		opts.CID = uuid.New()
	}
	if opts.KeepAliveInterval == 0 {
		opts.KeepAliveInterval = defaultKeepAlive
	}
	if opts.MulticastTTL == 0 {
		opts.MulticastTTL = 1
	}

	s := &Server{
		opts:      opts,
		log:       opts.Logger,
		universes: make(map[uint16]*universeState),
	}
	copy(s.cid[:], opts.CID[:])
	return s, nil
}

// Start binds the sending socket.
func (s *Server) Start(ctx context.Context) error {
	var bindIP net.IP
	if s.opts.BindAddress != "" {
		bindIP = net.ParseIP(s.opts.BindAddress)
		if bindIP == nil {
			return fmt.Errorf("sacn: bad bind address %q", s.opts.BindAddress)
		}
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: bindIP})
	if err != nil {
		return fmt.Errorf("sacn: binding send socket: %w", err)
	}
	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.logInfo("sACN server started",
		"source_name", s.opts.SourceName,
		"cid", s.opts.CID.String(),
		"priority", s.opts.Priority,
	)
	return nil
}

// Stop terminates every universe, closes the socket and waits for the
// keep-alive loops. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		universes := make([]uint16, 0, len(s.universes))
		for id := range s.universes {
			universes = append(universes, id)
		}
		s.mu.Unlock()

		for _, id := range universes {
			if err := s.TerminateUniverse(int(id)); err != nil {
				s.logWarn("terminating universe on shutdown", "universe", id, "error", err)
			}
		}

		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		if s.conn != nil {
			s.conn.Close() //nolint:errcheck // Shutdown path
		}
		s.logInfo("sACN server stopped")
	})
}

// AddUniverse configures a universe for output. The destination is
// the E1.31 multicast group unless unicastDest is set, in the form
// "host" or "host:port" with the port defaulting to 5568.
func (s *Server) AddUniverse(universe int, unicastDest string) error {
	if !ValidUniverse(universe) {
		return fmt.Errorf("%w: got %d", ErrInvalidUniverse, universe)
	}
	if s.conn == nil {
		return ErrNotRunning
	}
	id := uint16(universe)

	target := &net.UDPAddr{IP: MulticastGroup(id), Port: UDPPort}
	if unicastDest != "" {
		resolved, err := resolveUnicast(unicastDest)
		if err != nil {
			return err
		}
		target = resolved
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.universes[id]; exists {
		return nil
	}

	state := &universeState{universe: id, target: target}
	s.universes[id] = state

	if s.opts.KeepAliveInterval > 0 {
		loopCtx, loopCancel := context.WithCancel(s.ctx)
		state.cancel = loopCancel
		s.wg.Add(1)
		go s.keepAliveLoop(loopCtx, state)
	}

	s.logInfo("sACN universe added",
		"universe", universe,
		"target", target.String(),
		"multicast", unicastDest == "",
	)
	return nil
}

// resolveUnicast parses "host" or "host:port" destinations.
func resolveUnicast(dest string) (*net.UDPAddr, error) {
	if _, _, err := net.SplitHostPort(dest); err != nil {
		dest = net.JoinHostPort(dest, fmt.Sprintf("%d", UDPPort))
	}
	addr, err := net.ResolveUDPAddr("udp4", dest)
	if err != nil {
		return nil, fmt.Errorf("sacn: resolving unicast destination %q: %w", dest, err)
	}
	return addr, nil
}

// SendDmxData transmits a frame on a configured universe and queues it
// for keep-alive retransmission.
func (s *Server) SendDmxData(universe int, data []byte) error {
	if len(data) > dmx.UniverseSize {
		return fmt.Errorf("%w: %d channels", ErrPayloadTooLarge, len(data))
	}

	state, err := s.universeFor(universe)
	if err != nil {
		return err
	}

	frame := make([]byte, len(data))
	copy(frame, data)

	state.mu.Lock()
	if state.terminated {
		state.mu.Unlock()
		return fmt.Errorf("sacn: universe %d already terminated", universe)
	}
	state.lastData = frame
	packet, target, encErr := s.buildDataPacketLocked(state, frame, false)
	state.mu.Unlock()

	if encErr != nil {
		return encErr
	}
	return s.write(packet, target)
}

// keepAliveLoop re-sends the universe's last frame so receivers hold
// their output between updates.
func (s *Server) keepAliveLoop(ctx context.Context, state *universeState) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state.mu.Lock()
		if state.lastData == nil || state.terminated {
			state.mu.Unlock()
			continue
		}
		packet, target, err := s.buildDataPacketLocked(state, state.lastData, false)
		state.mu.Unlock()

		if err != nil {
			s.logError("encoding keep-alive packet", "universe", state.universe, "error", err)
			continue
		}
		if err := s.write(packet, target); err != nil {
			s.logDebug("keep-alive send failed", "universe", state.universe, "error", err)
		}
	}
}

// buildDataPacketLocked encodes a frame with the universe's next
// sequence number. Caller holds state.mu.
func (s *Server) buildDataPacketLocked(state *universeState, data []byte, terminated bool) ([]byte, *net.UDPAddr, error) {
	packet, err := DataPacket{
		CID:         s.cid,
		SourceName:  s.opts.SourceName,
		Priority:    s.opts.Priority,
		SyncAddress: s.opts.SyncAddress,
		Sequence:    state.sequence,
		Preview:     s.opts.Preview,
		Terminated:  terminated,
		ForceSync:   s.opts.SyncAddress != 0,
		Universe:    state.universe,
		Data:        data,
	}.Encode()
	if err != nil {
		return nil, nil, err
	}
	// E1.31 sequence arithmetic is a plain modulo-256 increment.
	state.sequence++
	return packet, state.target, nil
}

// TerminateUniverse announces the end of transmission on a universe.
// The terminated flag is sent three times for loss tolerance; repeat
// calls are no-ops.
func (s *Server) TerminateUniverse(universe int) error {
	state, err := s.universeFor(universe)
	if err != nil {
		return err
	}

	state.mu.Lock()
	if state.terminated {
		state.mu.Unlock()
		return nil
	}
	state.terminated = true
	if state.cancel != nil {
		state.cancel()
	}

	var packets [][]byte
	var target *net.UDPAddr
	for i := 0; i < terminationRepeats; i++ {
		packet, tgt, encErr := s.buildDataPacketLocked(state, nil, true)
		if encErr != nil {
			state.mu.Unlock()
			return encErr
		}
		packets = append(packets, packet)
		target = tgt
	}
	state.mu.Unlock()

	for _, packet := range packets {
		if err := s.write(packet, target); err != nil {
			return err
		}
	}

	s.logInfo("sACN universe terminated", "universe", universe)
	return nil
}

// SendSync emits a synchronization packet on the configured sync
// address, releasing any force-synced frames held by receivers.
func (s *Server) SendSync() error {
	if s.opts.SyncAddress == 0 {
		return fmt.Errorf("sacn: no sync address configured")
	}
	if s.conn == nil {
		return ErrNotRunning
	}

	s.mu.Lock()
	seq := s.syncSeq
	s.syncSeq++
	s.mu.Unlock()

	packet := EncodeSyncPacket(s.cid, seq, s.opts.SyncAddress)
	target := &net.UDPAddr{IP: MulticastGroup(s.opts.SyncAddress), Port: UDPPort}
	return s.write(packet, target)
}

func (s *Server) universeFor(universe int) (*universeState, error) {
	if !ValidUniverse(universe) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidUniverse, universe)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.universes[uint16(universe)]
	if !ok {
		return nil, fmt.Errorf("%w: universe %d", ErrUnknownUniverse, universe)
	}
	return state, nil
}

// write serializes sends on the shared socket.
func (s *Server) write(packet []byte, target *net.UDPAddr) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.conn == nil {
		return ErrNotRunning
	}
	if _, err := s.conn.WriteToUDP(packet, target); err != nil {
		return fmt.Errorf("sacn: sending to %s: %w", target, err)
	}
	return nil
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
