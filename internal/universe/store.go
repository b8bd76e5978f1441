package universe

import (
	"fmt"
	"sync"

	"github.com/nerrad567/dmx-core/internal/dmx"
	"github.com/nerrad567/dmx-core/internal/infrastructure/logging"
)

// Frame sizing constants.
const (
	// minFrameLength is the smallest frame a DMX receiver accepts.
	minFrameLength = 2
)

// FrameSender delivers an encoded channel frame to a protocol backend.
// Both the Art-Net and sACN servers implement this.
type FrameSender interface {
	SendFrame(addr dmx.PortAddress, data []byte) error
}

// Listener is notified after one or more channels it registered for
// change value. Listeners are compared by identity, so the same value
// must be used for registration and removal.
//
// ChannelsChanged is invoked outside the store's lock; implementations
// may safely read back channel values.
type Listener interface {
	ChannelsChanged(addr dmx.PortAddress, source string)
}

// sendState tracks the frame-sizing state machine.
//
// A store starts Uninitialized and moves to PartialSends after the
// first frame. The first frame always covers the full universe so
// receivers start from a known state; later frames may be trimmed to
// the configured channel range.
type sendState int

const (
	stateUninitialized sendState = iota
	statePartialSends
)

// Options configures a Store.
type Options struct {
	// Address identifies the universe this store manages.
	Address dmx.PortAddress

	// Sender receives outbound frames. May be nil for stores that are
	// only read (SendFrame then returns ErrNoSender).
	Sender FrameSender

	// PartialFrames enables the partial-universe frame optimization.
	// When false every frame carries all 512 channels.
	PartialFrames bool

	// Logger is optional.
	Logger *logging.Logger
}

// Store is the in-memory channel engine for a single DMX universe.
type Store struct {
	addr    dmx.PortAddress
	sender  FrameSender
	partial bool
	log     *logging.Logger

	mu         sync.Mutex
	values     [dmx.UniverseSize]byte
	configured map[int]struct{} // every channel ever assigned, 1-based
	changed    map[int]struct{} // channels touched since the last send
	listeners  map[int]map[Listener]struct{}
	state      sendState
}

// NewStore creates a channel store for one universe.
func NewStore(opts Options) *Store {
	return &Store{
		addr:       opts.Address,
		sender:     opts.Sender,
		partial:    opts.PartialFrames,
		log:        opts.Logger,
		configured: make(map[int]struct{}),
		changed:    make(map[int]struct{}),
		listeners:  make(map[int]map[Listener]struct{}),
	}
}

// Address returns the universe's port address.
func (s *Store) Address() dmx.PortAddress {
	return s.addr
}

// RegisterListener adds l to the fan-out list of each given channel.
// Registering the same listener twice on a channel is a no-op.
//
// Parameters:
//   - channels: 1-based channel numbers to watch
//   - l: listener to notify on changes
//
// Returns:
//   - error: ErrInvalidChannel if any channel is out of range
func (s *Store) RegisterListener(channels []int, l Listener) error {
	if err := validateChannels(channels); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		set, ok := s.listeners[ch]
		if !ok {
			set = make(map[Listener]struct{})
			s.listeners[ch] = set
		}
		set[l] = struct{}{}
	}
	return nil
}

// UnregisterListener removes l from the fan-out list of each given
// channel. Unknown registrations are ignored.
func (s *Store) UnregisterListener(channels []int, l Listener) error {
	if err := validateChannels(channels); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		if set, ok := s.listeners[ch]; ok {
			delete(set, l)
			if len(set) == 0 {
				delete(s.listeners, ch)
			}
		}
	}
	return nil
}

// UpdateValue sets the given channels to value.
//
// Channels whose stored value already equals value are skipped. Each
// listener registered on an affected channel is notified exactly once,
// even when it watches several of the touched channels.
//
// Parameters:
//   - channels: 1-based channel numbers to set
//   - value: new channel value
//   - sendImmediately: trigger a frame send before returning
//   - source: originator tag passed through to listeners
//
// Returns:
//   - error: ErrInvalidChannel, or a send error when sendImmediately is set
func (s *Store) UpdateValue(channels []int, value byte, sendImmediately bool, source string) error {
	if err := validateChannels(channels); err != nil {
		return err
	}

	s.mu.Lock()
	notify := make(map[Listener]struct{})
	for _, ch := range channels {
		s.applyLocked(ch, value, notify)
	}
	s.mu.Unlock()

	s.notify(notify, source)

	if sendImmediately {
		return s.SendFrame()
	}
	return nil
}

// UpdateMultipleValues applies a batch of channel updates without
// intermediate sends, notifies each affected listener once, then sends
// a single frame if sendUpdate is set.
func (s *Store) UpdateMultipleValues(updates map[int]byte, source string, sendUpdate bool) error {
	channels := make([]int, 0, len(updates))
	for ch := range updates {
		channels = append(channels, ch)
	}
	if err := validateChannels(channels); err != nil {
		return err
	}

	s.mu.Lock()
	notify := make(map[Listener]struct{})
	for ch, value := range updates {
		s.applyLocked(ch, value, notify)
	}
	s.mu.Unlock()

	s.notify(notify, source)

	if sendUpdate {
		return s.SendFrame()
	}
	return nil
}

// applyLocked writes one channel value, records change tracking, and
// collects affected listeners. Unchanged values are skipped entirely.
// Caller holds s.mu.
func (s *Store) applyLocked(ch int, value byte, notify map[Listener]struct{}) {
	s.configured[ch] = struct{}{}
	if s.values[ch-1] == value {
		return
	}
	s.values[ch-1] = value
	s.changed[ch] = struct{}{}
	for l := range s.listeners[ch] {
		notify[l] = struct{}{}
	}
}

// notify invokes the collected listeners outside the lock.
func (s *Store) notify(listeners map[Listener]struct{}, source string) {
	for l := range listeners {
		l.ChannelsChanged(s.addr, source)
	}
}

// GetChannelValue returns the cached value of a channel, or 0 when the
// channel was never set or is out of range.
func (s *Store) GetChannelValue(ch int) byte {
	if ch < 1 || ch > dmx.UniverseSize {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[ch-1]
}

// Snapshot returns a copy of all 512 channel values.
func (s *Store) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make([]byte, dmx.UniverseSize)
	copy(data, s.values[:])
	return data
}

// SendFrame encodes the outbound frame and hands it to the attached
// frame sender. The pending change set is cleared after a successful
// handoff and the store moves to the partial-sends state.
func (s *Store) SendFrame() error {
	if s.sender == nil {
		return ErrNoSender
	}

	s.mu.Lock()
	length := s.frameLengthLocked()
	data := make([]byte, length)
	copy(data, s.values[:length])
	s.changed = make(map[int]struct{})
	s.state = statePartialSends
	s.mu.Unlock()

	if s.log != nil {
		s.log.Debug("sending frame", "universe", s.addr.String(), "length", length)
	}

	if err := s.sender.SendFrame(s.addr, data); err != nil {
		return fmt.Errorf("sending frame for universe %s: %w", s.addr, err)
	}
	return nil
}

// frameLengthLocked implements the partial-universe sizing rule: the
// frame must cover every channel ever configured, not just the ones in
// the pending change set, rounded up to an even length of at least 2.
// Caller holds s.mu.
func (s *Store) frameLengthLocked() int {
	if !s.partial || s.state == stateUninitialized {
		return dmx.UniverseSize
	}

	maxConfigured := 0
	for ch := range s.configured {
		if ch > maxConfigured {
			maxConfigured = ch
		}
	}

	length := maxConfigured
	if length%2 != 0 {
		length++
	}
	if length < minFrameLength {
		length = minFrameLength
	}
	return length
}

// validateChannels checks that every channel number is within 1-512.
func validateChannels(channels []int) error {
	for _, ch := range channels {
		if ch < 1 || ch > dmx.UniverseSize {
			return fmt.Errorf("%w: got %d", ErrInvalidChannel, ch)
		}
	}
	return nil
}
