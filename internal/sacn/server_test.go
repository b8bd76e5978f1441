package sacn

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// startTestServer binds a real socket on an ephemeral port with
// keep-alive disabled so tests control every packet.
func startTestServer(t *testing.T, opts ServerOptions) *Server {
	t.Helper()
	opts.KeepAliveInterval = -1
	s, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(ServerOptions{Priority: 201}); !errors.Is(err, ErrPriorityOutOfRange) {
		t.Errorf("priority 201 error = %v, want ErrPriorityOutOfRange", err)
	}

	s, err := NewServer(ServerOptions{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if s.opts.Priority != DefaultPriority {
		t.Errorf("default priority = %d, want %d", s.opts.Priority, DefaultPriority)
	}
	if s.opts.CID == (uuid.UUID{}) {
		t.Error("CID not generated")
	}
}

func TestAddUniverseRequiresStart(t *testing.T) {
	s, err := NewServer(ServerOptions{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := s.AddUniverse(1, ""); !errors.Is(err, ErrNotRunning) {
		t.Errorf("AddUniverse before Start error = %v, want ErrNotRunning", err)
	}
}

func TestAddUniverseRejectsInvalidID(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	for _, id := range []int{0, -1, 64000} {
		if err := s.AddUniverse(id, ""); !errors.Is(err, ErrInvalidUniverse) {
			t.Errorf("AddUniverse(%d) error = %v, want ErrInvalidUniverse", id, err)
		}
	}
}

func TestSendDmxDataSequenceWrapsToZero(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	if err := s.AddUniverse(1, "127.0.0.1"); err != nil {
		t.Fatalf("AddUniverse: %v", err)
	}

	state, err := s.universeFor(1)
	if err != nil {
		t.Fatalf("universeFor: %v", err)
	}
	state.mu.Lock()
	state.sequence = 255
	state.mu.Unlock()

	if err := s.SendDmxData(1, []byte{1, 2}); err != nil {
		t.Fatalf("SendDmxData: %v", err)
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.sequence != 0 {
		t.Errorf("sequence after wrap = %d, want 0", state.sequence)
	}
}

func TestSendDmxDataUnknownUniverse(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	if err := s.SendDmxData(5, []byte{1}); !errors.Is(err, ErrUnknownUniverse) {
		t.Errorf("SendDmxData error = %v, want ErrUnknownUniverse", err)
	}
}

func TestTerminateUniverseIdempotent(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	if err := s.AddUniverse(2, "127.0.0.1"); err != nil {
		t.Fatalf("AddUniverse: %v", err)
	}

	if err := s.TerminateUniverse(2); err != nil {
		t.Fatalf("first TerminateUniverse: %v", err)
	}
	state, err := s.universeFor(2)
	if err != nil {
		t.Fatalf("universeFor: %v", err)
	}
	state.mu.Lock()
	seqAfterFirst := state.sequence
	state.mu.Unlock()
	if seqAfterFirst != terminationRepeats {
		t.Errorf("sequence after termination = %d, want %d", seqAfterFirst, terminationRepeats)
	}

	// Second call is a no-op: no further packets, no sequence change.
	if err := s.TerminateUniverse(2); err != nil {
		t.Fatalf("second TerminateUniverse: %v", err)
	}
	state.mu.Lock()
	if state.sequence != seqAfterFirst {
		t.Errorf("sequence changed on repeat termination: %d", state.sequence)
	}
	state.mu.Unlock()

	if err := s.SendDmxData(2, []byte{1}); err == nil {
		t.Error("SendDmxData succeeded on terminated universe")
	}
}

func TestSendSyncRequiresSyncAddress(t *testing.T) {
	s := startTestServer(t, ServerOptions{})
	if err := s.SendSync(); err == nil {
		t.Error("SendSync succeeded without a sync address")
	}
}

func TestResolveUnicastDefaultsPort(t *testing.T) {
	addr, err := resolveUnicast("127.0.0.1")
	if err != nil {
		t.Fatalf("resolveUnicast: %v", err)
	}
	if addr.Port != UDPPort {
		t.Errorf("default port = %d, want %d", addr.Port, UDPPort)
	}

	addr, err = resolveUnicast("127.0.0.1:9999")
	if err != nil {
		t.Fatalf("resolveUnicast: %v", err)
	}
	if addr.Port != 9999 {
		t.Errorf("explicit port = %d, want 9999", addr.Port)
	}
}
