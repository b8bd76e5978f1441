package artnet

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/dmx-core/internal/dmx"
)

// newTestServer builds a server without binding a socket; handlers and
// registry logic are exercised directly.
func newTestServer(t *testing.T, opts ServerOptions) *Server {
	t.Helper()
	s, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	s.startedAt = time.Now()
	return s
}

func testReply(name string, bindIndex uint8, addrs ...dmx.PortAddress) PollReply {
	r := PollReply{
		ShortName: name,
		BindIndex: bindIndex,
		NumPorts:  uint16(len(addrs)),
	}
	if len(addrs) > 0 {
		r.NetSwitch = uint8(addrs[0].Net)
		r.SubSwitch = uint8(addrs[0].SubNet)
	}
	for i, a := range addrs {
		if i >= 4 {
			break
		}
		r.PortTypes[i] = PortCanOutput
		r.SwOut[i] = uint8(a.Universe)
	}
	return r
}

func TestNextSequenceWrapsSkippingZero(t *testing.T) {
	if got := nextSequence(0); got != 1 {
		t.Errorf("nextSequence(0) = %d, want 1", got)
	}
	if got := nextSequence(254); got != 255 {
		t.Errorf("nextSequence(254) = %d, want 255", got)
	}
	if got := nextSequence(255); got != 1 {
		t.Errorf("nextSequence(255) = %d, want 1", got)
	}
}

func TestHandlePollReplyDiscoveryAndUpdate(t *testing.T) {
	var mu sync.Mutex
	var events []NodeEvent
	s := newTestServer(t, ServerOptions{
		OnNodeEvent: func(e NodeEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	})

	src := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 50), Port: UDPPort}
	reply := testReply("node-a", 1, dmx.PortAddress{Net: 0, SubNet: 0, Universe: 1})

	s.handlePollReply(reply.Encode(), src)
	s.handlePollReply(reply.Encode(), src)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != NodeDiscovered {
		t.Errorf("first event = %v, want discovered", events[0].Type)
	}
	if events[1].Type != NodeUpdated {
		t.Errorf("second event = %v, want updated", events[1].Type)
	}
	if s.nodes.count() != 1 {
		t.Errorf("node count = %d, want 1", s.nodes.count())
	}
}

func TestHandlePollReplyIgnoresOwnReply(t *testing.T) {
	s := newTestServer(t, ServerOptions{ShortName: "controller"})

	src := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: UDPPort}
	reply := testReply("controller", 0)
	s.handlePollReply(reply.Encode(), src)

	if s.nodes.count() != 0 {
		t.Errorf("own reply registered as node, count = %d", s.nodes.count())
	}
}

func TestStaleEvictionFiresOneLossPerAddress(t *testing.T) {
	var mu sync.Mutex
	lost := make(map[dmx.PortAddress]int)
	s := newTestServer(t, ServerOptions{
		OnNodeEvent: func(e NodeEvent) {
			if e.Type != NodeLost {
				return
			}
			mu.Lock()
			lost[e.Address]++
			mu.Unlock()
		},
	})

	addr1 := dmx.PortAddress{Universe: 1}
	addr2 := dmx.PortAddress{Universe: 2}
	src := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 60), Port: UDPPort}
	s.handlePollReply(testReply("node-b", 1, addr1, addr2).Encode(), src)

	s.evictStale(time.Now().Add(time.Second))

	mu.Lock()
	defer mu.Unlock()
	if len(lost) != 2 {
		t.Fatalf("lost events cover %d addresses, want 2", len(lost))
	}
	for addr, n := range lost {
		if n != 1 {
			t.Errorf("address %s got %d lost events, want exactly 1", addr, n)
		}
	}
	if s.nodes.count() != 0 {
		t.Errorf("node count after eviction = %d, want 0", s.nodes.count())
	}
	if got := s.targetsFor(addr1); len(got) != 0 {
		t.Errorf("targets for %s after eviction = %d, want 0", addr1, len(got))
	}
}

func TestDroppedAddressUnregistersSubscription(t *testing.T) {
	var mu sync.Mutex
	var lost []dmx.PortAddress
	s := newTestServer(t, ServerOptions{
		OnNodeEvent: func(e NodeEvent) {
			if e.Type != NodeLost {
				return
			}
			mu.Lock()
			lost = append(lost, e.Address)
			mu.Unlock()
		},
	})

	addr := dmx.PortAddress{Universe: 5}
	src := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 70), Port: UDPPort}
	s.handlePollReply(testReply("node-c", 1, addr).Encode(), src)

	if got := s.targetsFor(addr); len(got) != 1 {
		t.Fatalf("targets before drop = %d, want 1", len(got))
	}

	// The node stops advertising any outputs.
	s.handlePollReply(testReply("node-c", 1).Encode(), src)

	if got := s.targetsFor(addr); len(got) != 0 {
		t.Errorf("targets after drop = %d, want 0", len(got))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(lost) != 1 || lost[0] != addr {
		t.Errorf("lost events = %v, want exactly [%s]", lost, addr)
	}
}

func TestSendDmxNotReadyWithoutNodes(t *testing.T) {
	s := newTestServer(t, ServerOptions{})

	outcome, err := s.SendDmx(dmx.PortAddress{Universe: 1}, []byte{1, 2})
	if err != nil {
		t.Fatalf("SendDmx: %v", err)
	}
	if outcome != SendNotReady {
		t.Errorf("outcome = %v, want SendNotReady", outcome)
	}

	// Past the discovery grace the drop is reported in the status
	// message, but the outcome is the same.
	s.startedAt = time.Now().Add(-time.Minute)
	outcome, err = s.SendDmx(dmx.PortAddress{Universe: 1}, []byte{1, 2})
	if err != nil {
		t.Fatalf("SendDmx: %v", err)
	}
	if outcome != SendNotReady {
		t.Errorf("outcome = %v, want SendNotReady", outcome)
	}
	if s.status() == "" {
		t.Error("expected a status message after grace expired")
	}
}

func TestSendDmxRejectsOversizedPayload(t *testing.T) {
	s := newTestServer(t, ServerOptions{})
	if _, err := s.SendDmx(dmx.PortAddress{Universe: 1}, make([]byte, 513)); err == nil {
		t.Error("SendDmx accepted 513 channels")
	}
}

func TestManualNodeProvidesTarget(t *testing.T) {
	s := newTestServer(t, ServerOptions{})
	addr := dmx.PortAddress{Universe: 9}

	if err := s.AddManualNode(addr, "10.0.0.5", 0); err != nil {
		t.Fatalf("AddManualNode: %v", err)
	}

	targets := s.targetsFor(addr)
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	if targets[0].Port != UDPPort {
		t.Errorf("target port = %d, want %d", targets[0].Port, UDPPort)
	}
}

func TestInputActiveFlag(t *testing.T) {
	var mu sync.Mutex
	var gotAddr dmx.PortAddress
	var gotData []byte
	s := newTestServer(t, ServerOptions{
		OnData: func(addr dmx.PortAddress, data []byte, source string) {
			mu.Lock()
			gotAddr = addr
			gotData = append([]byte(nil), data...)
			mu.Unlock()
		},
	})

	if s.InputActive() {
		t.Fatal("input active before any ArtDmx")
	}

	packet, err := Dmx{Sequence: 1, Address: dmx.PortAddress{Universe: 2}, Data: []byte{10, 20}}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s.handleDmx(packet, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 80), Port: UDPPort})

	if !s.InputActive() {
		t.Error("input not active after ArtDmx")
	}
	mu.Lock()
	defer mu.Unlock()
	if gotAddr != (dmx.PortAddress{Universe: 2}) {
		t.Errorf("callback address = %v, want universe 2", gotAddr)
	}
	if len(gotData) != 2 || gotData[0] != 10 || gotData[1] != 20 {
		t.Errorf("callback data = %v, want [10 20]", gotData)
	}
}

func TestTriggerCallback(t *testing.T) {
	var mu sync.Mutex
	var key, subKey uint8
	var text string
	s := newTestServer(t, ServerOptions{
		OnTrigger: func(k, sk uint8, txt string) {
			mu.Lock()
			key, subKey, text = k, sk, txt
			mu.Unlock()
		},
	})

	tr := Trigger{Key: 3, SubKey: 1, Data: []byte("scene:evening\x00")}
	s.handleTrigger(tr.Encode(), &net.UDPAddr{IP: net.IPv4(192, 168, 1, 90), Port: UDPPort})

	mu.Lock()
	defer mu.Unlock()
	if key != 3 || subKey != 1 || text != "scene:evening" {
		t.Errorf("trigger callback = (%d, %d, %q), want (3, 1, %q)", key, subKey, text, "scene:evening")
	}
}
