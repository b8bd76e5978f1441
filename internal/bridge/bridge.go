package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/dmx-core/internal/animation"
	"github.com/nerrad567/dmx-core/internal/artnet"
	"github.com/nerrad567/dmx-core/internal/dmx"
	"github.com/nerrad567/dmx-core/internal/infrastructure/logging"
	"github.com/nerrad567/dmx-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/dmx-core/internal/nodelog"
	"github.com/nerrad567/dmx-core/internal/ratelimit"
	"github.com/nerrad567/dmx-core/internal/universe"
)

// Bridge operation constants.
const (
	// defaultStateInterval is the minimum spacing between state
	// snapshot publications for one universe.
	defaultStateInterval = 250 * time.Millisecond

	// stateForceMultiplier bounds snapshot staleness under continuous
	// channel churn (interval * multiplier).
	stateForceMultiplier = 4

	// commandQoS is the QoS level for command subscriptions and event
	// publications.
	commandQoS = 1

	// nodeLogTimeout bounds each node event database write.
	nodeLogTimeout = 5 * time.Second
)

// MQTTClient is the interface for MQTT operations.
// Satisfied by *mqtt.Client; mockable in tests.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// PublishRetained sends a retained message with the default QoS.
	PublishRetained(topic string, payload []byte) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MQTT is the broker client. Required.
	MQTT MQTTClient

	// Stores are the universe stores exposed over MQTT, keyed by
	// address. Required, at least one.
	Stores map[dmx.PortAddress]*universe.Store

	// Engine handles animate commands. Optional; without it animate
	// commands are rejected with a warning.
	Engine *animation.Engine

	// NodeLog persists node lifecycle events. Optional.
	NodeLog nodelog.Repository

	// StateInterval is the minimum spacing between state snapshot
	// publications per universe. Zero selects the default.
	StateInterval time.Duration

	// MinKelvin and MaxKelvin are the tunable-white bounds used when
	// an animate command does not carry its own. Zero leaves the
	// engine defaults in effect.
	MinKelvin float64
	MaxKelvin float64

	// Logger is optional.
	Logger *logging.Logger
}

// Bridge exposes universe stores and node events over MQTT.
type Bridge struct {
	mqtt          MQTTClient
	stores        map[dmx.PortAddress]*universe.Store
	engine        *animation.Engine
	nodeLog       nodelog.Repository
	log           *logging.Logger
	stateInterval time.Duration
	minKelvin     float64
	maxKelvin     float64

	limiters map[dmx.PortAddress]*ratelimit.Limiter

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// setCommand is the payload of a dmx/universe/<addr>/set message.
type setCommand struct {
	// Channels maps 1-based channel numbers to values 0-255.
	Channels map[string]int `json:"channels"`
}

// animateChannel is one channel binding in an animate command.
type animateChannel struct {
	Type    string  `json:"type"`
	Indexes []int   `json:"indexes"`
	Target  float64 `json:"target"`
}

// animateCommand is the payload of a dmx/universe/<addr>/animate message.
type animateCommand struct {
	DurationMs int              `json:"duration_ms"`
	MinKelvin  float64          `json:"min_kelvin,omitempty"`
	MaxKelvin  float64          `json:"max_kelvin,omitempty"`
	Channels   []animateChannel `json:"channels"`
}

// stateSnapshot is the payload published to dmx/universe/<addr>/state.
type stateSnapshot struct {
	Address  string         `json:"address"`
	Channels map[string]int `json:"channels"`
	Updated  string         `json:"updated"`
}

// nodeEventPayload is the payload published to dmx/nodes/<ip>_<bind>.
type nodeEventPayload struct {
	Event     string   `json:"event"`
	IP        string   `json:"ip"`
	BindIndex int      `json:"bind_index"`
	ShortName string   `json:"short_name,omitempty"`
	LongName  string   `json:"long_name,omitempty"`
	Addresses []string `json:"addresses"`
	Address   string   `json:"address,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// triggerPayload is the payload published to dmx/trigger.
type triggerPayload struct {
	Key       int    `json:"key"`
	SubKey    int    `json:"sub_key"`
	Text      string `json:"text,omitempty"`
	Timestamp string `json:"timestamp"`
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("bridge: MQTT client is required")
	}
	if len(opts.Stores) == 0 {
		return nil, fmt.Errorf("bridge: at least one universe store is required")
	}

	interval := opts.StateInterval
	if interval <= 0 {
		interval = defaultStateInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		mqtt:          opts.MQTT,
		stores:        opts.Stores,
		engine:        opts.Engine,
		nodeLog:       opts.NodeLog,
		log:           opts.Logger,
		stateInterval: interval,
		minKelvin:     opts.MinKelvin,
		maxKelvin:     opts.MaxKelvin,
		limiters:      make(map[dmx.PortAddress]*ratelimit.Limiter),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start subscribes to command topics, registers change listeners on
// every store, and publishes an initial retained snapshot per universe.
func (b *Bridge) Start() error {
	topic := mqtt.Topics{}.AllUniverseSets()
	if err := b.mqtt.Subscribe(topic, commandQoS, b.handleUniverseMessage); err != nil {
		return fmt.Errorf("bridge: subscribing to %s: %w", topic, err)
	}
	b.logInfo("subscribed to universe commands", "topic", topic)

	// Build every limiter before any listener can fire so the map is
	// read-only once callbacks start.
	for addr := range b.stores {
		a := addr
		b.limiters[a] = ratelimit.New(func() {
			b.publishState(a)
		}, b.stateInterval, b.stateInterval*stateForceMultiplier)
	}

	channels := allChannels()
	for addr, store := range b.stores {
		if err := store.RegisterListener(channels, b); err != nil {
			return fmt.Errorf("bridge: registering listener for universe %s: %w", addr, err)
		}
		b.publishState(addr)
	}

	b.logInfo("bridge started", "universes", len(b.stores))
	return nil
}

// Stop unregisters listeners, flushes a final snapshot per universe,
// and cancels pending node log writes.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		channels := allChannels()
		for addr, store := range b.stores {
			store.UnregisterListener(channels, b) //nolint:errcheck // channel list is known valid
			if l, ok := b.limiters[addr]; ok {
				l.Stop()
			}
			b.publishState(addr)
		}

		b.cancel()
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// ChannelsChanged implements universe.Listener: schedule a coalesced
// state publication for the changed universe.
func (b *Bridge) ChannelsChanged(addr dmx.PortAddress, source string) {
	if l, ok := b.limiters[addr]; ok {
		l.ScheduleUpdate()
	}
}

// handleUniverseMessage routes inbound dmx/universe/# messages.
//
// Topic layout is dmx/universe/<addr>/<command> where <addr> may itself
// contain slashes ("3/2/1"), so the command is the final segment.
func (b *Bridge) handleUniverseMessage(topic string, payload []byte) error {
	rest, ok := strings.CutPrefix(topic, mqtt.TopicPrefixUniverse+"/")
	if !ok {
		return fmt.Errorf("bridge: unexpected topic %q", topic)
	}

	idx := strings.LastIndex(rest, "/")
	if idx <= 0 {
		return fmt.Errorf("bridge: malformed universe topic %q", topic)
	}
	addrStr, command := rest[:idx], rest[idx+1:]

	// Our own retained snapshots arrive on the same wildcard.
	if command == "state" {
		return nil
	}

	addr, err := dmx.ParsePortAddress(addrStr)
	if err != nil {
		return fmt.Errorf("bridge: topic %q: %w", topic, err)
	}

	store, ok := b.stores[addr]
	if !ok {
		return fmt.Errorf("bridge: no store for universe %s", addr)
	}

	switch command {
	case "set":
		return b.handleSet(store, payload)
	case "animate":
		return b.handleAnimate(store, payload)
	default:
		return fmt.Errorf("bridge: unknown command %q on topic %q", command, topic)
	}
}

// handleSet applies a channel write command to the store.
func (b *Bridge) handleSet(store *universe.Store, payload []byte) error {
	var cmd setCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("bridge: parsing set command: %w", err)
	}
	if len(cmd.Channels) == 0 {
		return fmt.Errorf("bridge: set command has no channels")
	}

	updates := make(map[int]byte, len(cmd.Channels))
	for chStr, value := range cmd.Channels {
		ch, err := strconv.Atoi(chStr)
		if err != nil {
			return fmt.Errorf("bridge: channel %q is not a number", chStr)
		}
		if value < 0 || value > 255 {
			return fmt.Errorf("bridge: channel %d value %d not in [0, 255]", ch, value)
		}
		updates[ch] = byte(value)
	}

	if err := store.UpdateMultipleValues(updates, "mqtt", true); err != nil {
		return fmt.Errorf("bridge: applying set command: %w", err)
	}

	b.logDebug("applied set command",
		"universe", store.Address().String(),
		"channels", len(updates))
	return nil
}

// handleAnimate starts a fade on the animation engine.
func (b *Bridge) handleAnimate(store *universe.Store, payload []byte) error {
	if b.engine == nil {
		return fmt.Errorf("bridge: animate command received but no animation engine configured")
	}

	var cmd animateCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("bridge: parsing animate command: %w", err)
	}
	if len(cmd.Channels) == 0 {
		return fmt.Errorf("bridge: animate command has no channels")
	}
	if cmd.DurationMs < 0 {
		return fmt.Errorf("bridge: animate duration %dms is negative", cmd.DurationMs)
	}

	mappings := make([]animation.ChannelMapping, 0, len(cmd.Channels))
	target := make([]float64, 0, len(cmd.Channels))
	for _, ch := range cmd.Channels {
		typ, err := animation.ParseChannelType(ch.Type)
		if err != nil {
			return fmt.Errorf("bridge: animate command: %w", err)
		}
		mappings = append(mappings, animation.ChannelMapping{
			Type:    typ,
			Indexes: ch.Indexes,
		})
		target = append(target, ch.Target)
	}

	minK, maxK := cmd.MinKelvin, cmd.MaxKelvin
	if minK == 0 {
		minK = b.minKelvin
	}
	if maxK == 0 {
		maxK = b.maxKelvin
	}

	id, err := b.engine.Start(animation.Spec{
		Store:     store,
		Mappings:  mappings,
		Target:    target,
		Duration:  time.Duration(cmd.DurationMs) * time.Millisecond,
		MinKelvin: minK,
		MaxKelvin: maxK,
	})
	if err != nil {
		return fmt.Errorf("bridge: starting animation: %w", err)
	}

	b.logDebug("started animation",
		"universe", store.Address().String(),
		"animation_id", id,
		"duration_ms", cmd.DurationMs)
	return nil
}

// publishState publishes a retained snapshot of one universe's nonzero
// channels.
func (b *Bridge) publishState(addr dmx.PortAddress) {
	store, ok := b.stores[addr]
	if !ok {
		return
	}

	data := store.Snapshot()
	channels := make(map[string]int)
	for i, v := range data {
		if v != 0 {
			channels[strconv.Itoa(i+1)] = int(v)
		}
	}

	snapshot := stateSnapshot{
		Address:  addr.String(),
		Channels: channels,
		Updated:  time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		b.logError("marshalling state snapshot", err)
		return
	}

	topic := mqtt.Topics{}.UniverseState(addr.String())
	if err := b.mqtt.PublishRetained(topic, payload); err != nil {
		b.logError("publishing state snapshot", err)
	}
}

// HandleNodeEvent publishes a node lifecycle event and records it in
// the node event log. Wire this to artnet.ServerOptions.OnNodeEvent.
func (b *Bridge) HandleNodeEvent(ev artnet.NodeEvent) {
	nodeID := fmt.Sprintf("%s_%d", ev.Node.IP, ev.Node.BindIndex)

	addresses := make([]string, 0, len(ev.Node.Addresses))
	for _, a := range ev.Node.Addresses {
		addresses = append(addresses, a.String())
	}

	payload := nodeEventPayload{
		Event:     ev.Type.String(),
		IP:        ev.Node.IP.String(),
		BindIndex: int(ev.Node.BindIndex),
		ShortName: ev.Node.Name,
		LongName:  ev.Node.LongName,
		Addresses: addresses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if ev.Type == artnet.NodeLost {
		payload.Address = ev.Address.String()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.logError("marshalling node event", err)
		return
	}

	topic := mqtt.Topics{}.NodeEvent(nodeID)
	if err := b.mqtt.PublishRetained(topic, data); err != nil {
		b.logError("publishing node event", err)
	}

	b.recordNodeEvent(ev)
}

// recordNodeEvent writes the event to the node log asynchronously so
// slow database writes never stall the Art-Net receive path.
func (b *Bridge) recordNodeEvent(ev artnet.NodeEvent) {
	if b.nodeLog == nil {
		return
	}

	entry := &nodelog.Event{
		EventType: ev.Type.String(),
		NodeIP:    ev.Node.IP.String(),
		BindIndex: int(ev.Node.BindIndex),
		ShortName: ev.Node.Name,
		LongName:  ev.Node.LongName,
	}
	if ev.Type == artnet.NodeLost {
		entry.Address = ev.Address.String()
	} else if len(ev.Node.Addresses) > 0 {
		entry.Address = ev.Node.Addresses[0].String()
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(b.ctx, nodeLogTimeout)
		defer cancel()
		if err := b.nodeLog.Create(ctx, entry); err != nil {
			b.logError("recording node event", err)
		}
	}()
}

// HandleTrigger publishes an inbound ArtTrigger event. Wire this to
// artnet.ServerOptions.OnTrigger.
func (b *Bridge) HandleTrigger(key, subKey uint8, text string) {
	payload := triggerPayload{
		Key:       int(key),
		SubKey:    int(subKey),
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.logError("marshalling trigger event", err)
		return
	}

	topic := mqtt.Topics{}.Trigger()
	if err := b.mqtt.Publish(topic, data, commandQoS, false); err != nil {
		b.logError("publishing trigger event", err)
	}
}

// allChannels returns the 1-based channel numbers of a full universe.
func allChannels() []int {
	channels := make([]int, dmx.UniverseSize)
	for i := range channels {
		channels[i] = i + 1
	}
	return channels
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if b.log != nil {
		b.log.Info(msg, args...)
	}
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if b.log != nil {
		b.log.Debug(msg, args...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if b.log != nil {
		b.log.Error(msg, "error", err)
	}
}
