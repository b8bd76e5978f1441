package bridge

import (
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/dmx-core/internal/animation"
	"github.com/nerrad567/dmx-core/internal/artnet"
	"github.com/nerrad567/dmx-core/internal/dmx"
	"github.com/nerrad567/dmx-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/dmx-core/internal/universe"
)

// publication records one message handed to the mock client.
type publication struct {
	topic    string
	payload  []byte
	retained bool
}

// mockMQTT captures publications and subscriptions in memory.
type mockMQTT struct {
	mu        sync.Mutex
	published []publication
	handlers  map[string]mqtt.MessageHandler
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publication{topic: topic, payload: payload, retained: retained})
	return nil
}

func (m *mockMQTT) PublishRetained(topic string, payload []byte) error {
	return m.Publish(topic, payload, 1, true)
}

func (m *mockMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) IsConnected() bool { return true }

// lastPublication returns the most recent publication on a topic.
func (m *mockMQTT) lastPublication(topic string) (publication, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].topic == topic {
			return m.published[i], true
		}
	}
	return publication{}, false
}

// handler returns the registered handler for the universe wildcard.
func (m *mockMQTT) handler(t *testing.T) mqtt.MessageHandler {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handlers[mqtt.Topics{}.AllUniverseSets()]
	if !ok {
		t.Fatal("bridge did not subscribe to universe commands")
	}
	return h
}

// captureSender records frames handed to it by the store.
type captureSender struct {
	mu     sync.Mutex
	frames int
}

func (s *captureSender) SendFrame(addr dmx.PortAddress, data []byte) error {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// newTestBridge builds a started bridge with one universe on address 1.
func newTestBridge(t *testing.T, engine *animation.Engine) (*Bridge, *mockMQTT, *universe.Store, *captureSender) {
	t.Helper()

	addr := dmx.PortAddress{Universe: 1}
	sender := &captureSender{}
	store := universe.NewStore(universe.Options{
		Address:       addr,
		Sender:        sender,
		PartialFrames: false,
	})

	client := newMockMQTT()
	b, err := New(Options{
		MQTT:   client,
		Stores: map[dmx.PortAddress]*universe.Store{addr: store},
		Engine: engine,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(b.Stop)

	return b, client, store, sender
}

// waitForValue polls a channel until it holds value or the deadline passes.
func waitForValue(t *testing.T, store *universe.Store, ch int, value byte) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.GetChannelValue(ch) == value {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("channel %d = %d, want %d", ch, store.GetChannelValue(ch), value)
}

func TestNewValidation(t *testing.T) {
	addr := dmx.PortAddress{Universe: 1}
	stores := map[dmx.PortAddress]*universe.Store{
		addr: universe.NewStore(universe.Options{Address: addr}),
	}

	if _, err := New(Options{Stores: stores}); err == nil {
		t.Error("New() without MQTT client should fail")
	}
	if _, err := New(Options{MQTT: newMockMQTT()}); err == nil {
		t.Error("New() without stores should fail")
	}
}

func TestStartPublishesInitialState(t *testing.T) {
	_, client, _, _ := newTestBridge(t, nil)

	topic := mqtt.Topics{}.UniverseState("1")
	pub, ok := client.lastPublication(topic)
	if !ok {
		t.Fatalf("no initial state published on %s", topic)
	}
	if !pub.retained {
		t.Error("state snapshot should be retained")
	}

	var snap stateSnapshot
	if err := json.Unmarshal(pub.payload, &snap); err != nil {
		t.Fatalf("unmarshalling snapshot: %v", err)
	}
	if snap.Address != "1" {
		t.Errorf("Address = %q, want %q", snap.Address, "1")
	}
	if len(snap.Channels) != 0 {
		t.Errorf("initial snapshot has %d channels, want 0", len(snap.Channels))
	}
}

func TestSetCommandUpdatesStore(t *testing.T) {
	_, client, store, sender := newTestBridge(t, nil)
	handler := client.handler(t)

	err := handler("dmx/universe/1/set", []byte(`{"channels":{"1":255,"7":128}}`))
	if err != nil {
		t.Fatalf("set command error = %v", err)
	}

	if got := store.GetChannelValue(1); got != 255 {
		t.Errorf("channel 1 = %d, want 255", got)
	}
	if got := store.GetChannelValue(7); got != 128 {
		t.Errorf("channel 7 = %d, want 128", got)
	}
	if sender.count() == 0 {
		t.Error("set command did not trigger a frame send")
	}

	// The change listener publishes an updated snapshot.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pub, ok := client.lastPublication(mqtt.Topics{}.UniverseState("1"))
		if ok {
			var snap stateSnapshot
			if json.Unmarshal(pub.payload, &snap) == nil && snap.Channels["1"] == 255 {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("updated snapshot was not published")
}

func TestSetCommandValidation(t *testing.T) {
	_, client, _, _ := newTestBridge(t, nil)
	handler := client.handler(t)

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"malformed json", "dmx/universe/1/set", `{"channels":`},
		{"no channels", "dmx/universe/1/set", `{"channels":{}}`},
		{"channel not a number", "dmx/universe/1/set", `{"channels":{"abc":1}}`},
		{"value out of range", "dmx/universe/1/set", `{"channels":{"1":256}}`},
		{"channel out of range", "dmx/universe/1/set", `{"channels":{"513":1}}`},
		{"unknown universe", "dmx/universe/9/set", `{"channels":{"1":1}}`},
		{"unknown command", "dmx/universe/1/wibble", `{}`},
		{"bad address", "dmx/universe/x/y/set", `{"channels":{"1":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := handler(tt.topic, []byte(tt.payload)); err == nil {
				t.Errorf("handler(%s) should fail", tt.topic)
			}
		})
	}
}

func TestStateTopicIgnored(t *testing.T) {
	_, client, store, _ := newTestBridge(t, nil)
	handler := client.handler(t)

	// Retained snapshots come back on the same wildcard; they must not
	// be treated as commands.
	err := handler("dmx/universe/1/state", []byte(`{"address":"1","channels":{"1":9}}`))
	if err != nil {
		t.Fatalf("state topic error = %v", err)
	}
	if got := store.GetChannelValue(1); got != 0 {
		t.Errorf("channel 1 = %d, want 0 (state must not write back)", got)
	}
}

func TestAnimateCommand(t *testing.T) {
	engine := animation.NewEngine(40, nil)
	t.Cleanup(engine.Stop)

	_, client, store, _ := newTestBridge(t, engine)
	handler := client.handler(t)

	payload := `{"duration_ms":0,"channels":[{"type":"dimmer","indexes":[5],"target":200}]}`
	if err := handler("dmx/universe/1/animate", []byte(payload)); err != nil {
		t.Fatalf("animate command error = %v", err)
	}

	waitForValue(t, store, 5, 200)
}

func TestAnimateCommandValidation(t *testing.T) {
	engine := animation.NewEngine(40, nil)
	t.Cleanup(engine.Stop)

	_, client, _, _ := newTestBridge(t, engine)
	handler := client.handler(t)

	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"channels":`},
		{"no channels", `{"duration_ms":100,"channels":[]}`},
		{"negative duration", `{"duration_ms":-1,"channels":[{"type":"dimmer","indexes":[1],"target":1}]}`},
		{"unknown type", `{"duration_ms":100,"channels":[{"type":"sparkle","indexes":[1],"target":1}]}`},
		{"no indexes", `{"duration_ms":100,"channels":[{"type":"dimmer","indexes":[],"target":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := handler("dmx/universe/1/animate", []byte(tt.payload)); err == nil {
				t.Error("animate command should fail")
			}
		})
	}
}

func TestAnimateWithoutEngine(t *testing.T) {
	_, client, _, _ := newTestBridge(t, nil)
	handler := client.handler(t)

	payload := `{"duration_ms":100,"channels":[{"type":"dimmer","indexes":[1],"target":1}]}`
	if err := handler("dmx/universe/1/animate", []byte(payload)); err == nil {
		t.Error("animate without engine should fail")
	}
}

func TestHandleNodeEvent(t *testing.T) {
	b, client, _, _ := newTestBridge(t, nil)

	b.HandleNodeEvent(artnet.NodeEvent{
		Type: artnet.NodeDiscovered,
		Node: artnet.Node{
			Name:      "dimmer-rack",
			LongName:  "Stage left dimmer rack",
			IP:        net.IPv4(192, 168, 1, 50),
			BindIndex: 1,
			Addresses: []dmx.PortAddress{{Universe: 1}, {Universe: 2}},
		},
	})

	topic := mqtt.Topics{}.NodeEvent("192.168.1.50_1")
	pub, ok := client.lastPublication(topic)
	if !ok {
		t.Fatalf("no node event published on %s", topic)
	}
	if !pub.retained {
		t.Error("node events should be retained")
	}

	var ev nodeEventPayload
	if err := json.Unmarshal(pub.payload, &ev); err != nil {
		t.Fatalf("unmarshalling node event: %v", err)
	}
	if ev.Event != "discovered" {
		t.Errorf("Event = %q, want %q", ev.Event, "discovered")
	}
	if ev.ShortName != "dimmer-rack" {
		t.Errorf("ShortName = %q, want %q", ev.ShortName, "dimmer-rack")
	}
	if len(ev.Addresses) != 2 || ev.Addresses[0] != "1" || ev.Addresses[1] != "2" {
		t.Errorf("Addresses = %v, want [1 2]", ev.Addresses)
	}
}

func TestHandleNodeLostIncludesAddress(t *testing.T) {
	b, client, _, _ := newTestBridge(t, nil)

	b.HandleNodeEvent(artnet.NodeEvent{
		Type: artnet.NodeLost,
		Node: artnet.Node{
			IP:        net.IPv4(192, 168, 1, 51),
			BindIndex: 2,
		},
		Address: dmx.PortAddress{Net: 3, SubNet: 2, Universe: 1},
	})

	pub, ok := client.lastPublication(mqtt.Topics{}.NodeEvent("192.168.1.51_2"))
	if !ok {
		t.Fatal("no node event published")
	}

	var ev nodeEventPayload
	if err := json.Unmarshal(pub.payload, &ev); err != nil {
		t.Fatalf("unmarshalling node event: %v", err)
	}
	if ev.Event != "lost" {
		t.Errorf("Event = %q, want %q", ev.Event, "lost")
	}
	if ev.Address != "3/2/1" {
		t.Errorf("Address = %q, want %q", ev.Address, "3/2/1")
	}
}

func TestHandleTrigger(t *testing.T) {
	b, client, _, _ := newTestBridge(t, nil)

	b.HandleTrigger(1, 4, "scene:evening")

	pub, ok := client.lastPublication(mqtt.Topics{}.Trigger())
	if !ok {
		t.Fatal("no trigger published")
	}
	if pub.retained {
		t.Error("trigger events should not be retained")
	}

	var tr triggerPayload
	if err := json.Unmarshal(pub.payload, &tr); err != nil {
		t.Fatalf("unmarshalling trigger: %v", err)
	}
	if tr.Key != 1 || tr.SubKey != 4 {
		t.Errorf("Key/SubKey = %d/%d, want 1/4", tr.Key, tr.SubKey)
	}
	if !strings.Contains(tr.Text, "evening") {
		t.Errorf("Text = %q, want scene text", tr.Text)
	}
}
