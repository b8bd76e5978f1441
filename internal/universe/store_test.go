package universe

import (
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/dmx-core/internal/dmx"
)

// captureSender records every frame handed to it.
type captureSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *captureSender) SendFrame(_ dmx.PortAddress, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return nil
}

func (c *captureSender) last(t *testing.T) []byte {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		t.Fatal("no frames sent")
	}
	return c.frames[len(c.frames)-1]
}

// countListener counts change notifications.
type countListener struct {
	mu    sync.Mutex
	count int
}

func (l *countListener) ChannelsChanged(_ dmx.PortAddress, _ string) {
	l.mu.Lock()
	l.count++
	l.mu.Unlock()
}

func (l *countListener) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func newTestStore(sender FrameSender) *Store {
	return NewStore(Options{
		Address:       dmx.PortAddress{Universe: 1},
		Sender:        sender,
		PartialFrames: true,
	})
}

func TestUpdateValueAndGet(t *testing.T) {
	s := newTestStore(nil)

	if err := s.UpdateValue([]int{7}, 200, false, "test"); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if got := s.GetChannelValue(7); got != 200 {
		t.Errorf("GetChannelValue(7) = %d, want 200", got)
	}
	if got := s.GetChannelValue(8); got != 0 {
		t.Errorf("GetChannelValue(8) = %d, want 0 for never-set channel", got)
	}
}

func TestUpdateValueRejectsBadChannel(t *testing.T) {
	s := newTestStore(nil)

	for _, ch := range []int{0, -1, 513} {
		err := s.UpdateValue([]int{ch}, 1, false, "")
		if !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("UpdateValue(channel %d) error = %v, want ErrInvalidChannel", ch, err)
		}
	}
}

func TestListenerDeduplicatedAcrossBatch(t *testing.T) {
	s := newTestStore(nil)
	l := &countListener{}

	if err := s.RegisterListener([]int{1, 2, 3}, l); err != nil {
		t.Fatalf("RegisterListener: %v", err)
	}

	// One batch touching all three watched channels fires the listener once.
	if err := s.UpdateValue([]int{1, 2, 3}, 99, false, "test"); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if got := l.calls(); got != 1 {
		t.Errorf("listener called %d times, want 1", got)
	}

	// Unchanged values fire nothing.
	if err := s.UpdateValue([]int{1, 2, 3}, 99, false, "test"); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if got := l.calls(); got != 1 {
		t.Errorf("listener called %d times after no-op update, want 1", got)
	}
}

func TestRegisterListenerIdempotent(t *testing.T) {
	s := newTestStore(nil)
	l := &countListener{}

	for i := 0; i < 3; i++ {
		if err := s.RegisterListener([]int{5}, l); err != nil {
			t.Fatalf("RegisterListener: %v", err)
		}
	}

	if err := s.UpdateValue([]int{5}, 10, false, ""); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if got := l.calls(); got != 1 {
		t.Errorf("listener called %d times, want 1 after duplicate registration", got)
	}
}

func TestUnregisterListener(t *testing.T) {
	s := newTestStore(nil)
	l := &countListener{}

	if err := s.RegisterListener([]int{5}, l); err != nil {
		t.Fatalf("RegisterListener: %v", err)
	}
	if err := s.UnregisterListener([]int{5}, l); err != nil {
		t.Fatalf("UnregisterListener: %v", err)
	}

	if err := s.UpdateValue([]int{5}, 10, false, ""); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if got := l.calls(); got != 0 {
		t.Errorf("listener called %d times after unregister, want 0", got)
	}
}

func TestFirstSendCoversFullUniverse(t *testing.T) {
	sender := &captureSender{}
	s := newTestStore(sender)

	if err := s.UpdateValue([]int{1}, 128, true, ""); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}

	frame := sender.last(t)
	if len(frame) != dmx.UniverseSize {
		t.Errorf("first frame length = %d, want %d", len(frame), dmx.UniverseSize)
	}
}

func TestPartialFrameCoversAllConfiguredChannels(t *testing.T) {
	sender := &captureSender{}
	s := newTestStore(sender)

	// Configure channels 1 and 50, flush the full first frame.
	if err := s.UpdateMultipleValues(map[int]byte{1: 128, 50: 200}, "", true); err != nil {
		t.Fatalf("UpdateMultipleValues: %v", err)
	}

	// Update only channel 1. The frame must still reach channel 50.
	if err := s.UpdateValue([]int{1}, 150, true, ""); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}

	frame := sender.last(t)
	if len(frame) < 50 {
		t.Fatalf("frame length = %d, want >= 50 to cover configured channel 50", len(frame))
	}
	if frame[49] != 200 {
		t.Errorf("frame[49] = %d, want 200 (channel 50 untouched)", frame[49])
	}
	if frame[0] != 150 {
		t.Errorf("frame[0] = %d, want 150", frame[0])
	}
}

func TestPartialFrameLengthEvenAndMinimumTwo(t *testing.T) {
	tests := []struct {
		name       string
		channels   map[int]byte
		wantLength int
	}{
		{name: "odd top channel rounds up", channels: map[int]byte{3: 1}, wantLength: 4},
		{name: "even top channel kept", channels: map[int]byte{4: 1}, wantLength: 4},
		{name: "channel one clamps to two", channels: map[int]byte{1: 1}, wantLength: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &captureSender{}
			s := newTestStore(sender)

			// First send is always full size; discard it.
			if err := s.UpdateMultipleValues(tt.channels, "", true); err != nil {
				t.Fatalf("UpdateMultipleValues: %v", err)
			}

			if err := s.SendFrame(); err != nil {
				t.Fatalf("SendFrame: %v", err)
			}

			frame := sender.last(t)
			if len(frame) != tt.wantLength {
				t.Errorf("frame length = %d, want %d", len(frame), tt.wantLength)
			}
			if len(frame)%2 != 0 {
				t.Errorf("frame length %d is odd", len(frame))
			}
		})
	}
}

func TestFullFramesWhenPartialDisabled(t *testing.T) {
	sender := &captureSender{}
	s := NewStore(Options{
		Address: dmx.PortAddress{Universe: 1},
		Sender:  sender,
	})

	if err := s.UpdateValue([]int{1}, 10, true, ""); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if err := s.UpdateValue([]int{1}, 20, true, ""); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}

	for i, frame := range sender.frames {
		if len(frame) != dmx.UniverseSize {
			t.Errorf("frame %d length = %d, want %d", i, len(frame), dmx.UniverseSize)
		}
	}
}

func TestSendFrameWithoutSender(t *testing.T) {
	s := newTestStore(nil)
	if err := s.SendFrame(); !errors.Is(err, ErrNoSender) {
		t.Errorf("SendFrame() error = %v, want ErrNoSender", err)
	}
}

func TestUpdateMultipleValuesSingleSend(t *testing.T) {
	sender := &captureSender{}
	s := newTestStore(sender)

	if err := s.UpdateMultipleValues(map[int]byte{1: 10, 2: 20, 3: 30}, "", true); err != nil {
		t.Fatalf("UpdateMultipleValues: %v", err)
	}

	if len(sender.frames) != 1 {
		t.Fatalf("got %d frames, want exactly 1 for a batched update", len(sender.frames))
	}
	frame := sender.last(t)
	if frame[0] != 10 || frame[1] != 20 || frame[2] != 30 {
		t.Errorf("frame prefix = %v, want [10 20 30]", frame[:3])
	}
}
