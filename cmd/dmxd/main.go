// DMX Core - Lighting Control Daemon
//
// This is the main entry point for the DMX Core daemon. DMX Core is a
// DMX512 distribution engine designed for:
//   - Art-Net 4 and sACN (E1.31) output with node discovery
//   - MQTT command and state surface for automation systems
//   - Smooth colour-aware fades via the animation engine
//   - Offline-first operation on the local network
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	_ "github.com/nerrad567/dmx-core/migrations"

	"github.com/nerrad567/dmx-core/internal/animation"
	"github.com/nerrad567/dmx-core/internal/artnet"
	"github.com/nerrad567/dmx-core/internal/bridge"
	"github.com/nerrad567/dmx-core/internal/dmx"
	"github.com/nerrad567/dmx-core/internal/infrastructure/config"
	"github.com/nerrad567/dmx-core/internal/infrastructure/database"
	"github.com/nerrad567/dmx-core/internal/infrastructure/logging"
	"github.com/nerrad567/dmx-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/dmx-core/internal/nodelog"
	"github.com/nerrad567/dmx-core/internal/ratelimit"
	"github.com/nerrad567/dmx-core/internal/sacn"
	"github.com/nerrad567/dmx-core/internal/telemetry"
	"github.com/nerrad567/dmx-core/internal/universe"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// rateForceMultiplier bounds how long a throttled universe can go
// without flushing under continuous updates (rate_limit_ms * multiplier).
const rateForceMultiplier = 4

// metricsInterval paces telemetry snapshots of server counters.
const metricsInterval = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DMX Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Node event log
	nodeLog := nodelog.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker (optional; without it the daemon still
	// outputs DMX but has no command surface)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var telemetryClient *telemetry.Client
	if cfg.InfluxDB.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		telemetryClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Resolve universe configuration up front so protocol servers can
	// be constructed with the full address plan.
	plan, err := resolveUniverses(cfg.Universes)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		return fmt.Errorf("no universes configured")
	}

	// The protocol callbacks below close over stores and br. Both are
	// fully populated before any server starts, so the callbacks only
	// ever see the final values.
	stores := make(map[dmx.PortAddress]*universe.Store, len(plan))
	var br *bridge.Bridge

	applyReceived := func(addr dmx.PortAddress, data []byte, source string) {
		store, ok := stores[addr]
		if !ok {
			return
		}
		updates := make(map[int]byte)
		for i, v := range data {
			ch := i + 1
			if ch > dmx.UniverseSize {
				break
			}
			if v > 0 || store.GetChannelValue(ch) != v {
				updates[ch] = v
			}
		}
		if len(updates) == 0 {
			return
		}
		// Received data merges into local state only; resending it
		// would loop it back onto the wire.
		if err := store.UpdateMultipleValues(updates, source, false); err != nil {
			log.Error("applying received frame", "universe", addr.String(), "error", err)
		}
	}

	// Build the Art-Net server (not started yet)
	var artnetServer *artnet.Server
	if cfg.ArtNet.Enabled {
		bottom, top := artnetPollRange(plan)
		artnetServer, err = artnet.NewServer(artnet.ServerOptions{
			BindAddress:        cfg.ArtNet.BindAddress,
			BroadcastAddress:   cfg.ArtNet.BroadcastAddress,
			ShortName:          cfg.ArtNet.ShortName,
			LongName:           cfg.ArtNet.LongName,
			TargetBottom:       bottom,
			TargetTop:          top,
			RetransmitInterval: cfg.ArtNet.RetransmitInterval(),
			Diagnostics:        cfg.ArtNet.Diagnostics,
			OnData: func(addr dmx.PortAddress, data []byte, source string) {
				applyReceived(addr, data, "artnet:"+source)
			},
			OnTrigger: func(key, subKey uint8, text string) {
				if br != nil {
					br.HandleTrigger(key, subKey, text)
				}
			},
			OnNodeEvent: func(ev artnet.NodeEvent) {
				if br != nil {
					br.HandleNodeEvent(ev)
				}
			},
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("creating Art-Net server: %w", err)
		}
	} else {
		log.Info("Art-Net disabled")
	}

	// Build the sACN server and receiver (not started yet)
	var sacnServer *sacn.Server
	var sacnReceiver *sacn.Receiver
	if cfg.Sacn.Enabled {
		var cid uuid.UUID
		if cfg.Sacn.CID != "" {
			cid, err = uuid.Parse(cfg.Sacn.CID)
			if err != nil {
				return fmt.Errorf("parsing sacn.cid: %w", err)
			}
		}
		sacnServer, err = sacn.NewServer(sacn.ServerOptions{
			BindAddress:       cfg.Sacn.BindAddress,
			SourceName:        cfg.Sacn.SourceName,
			CID:               cid,
			Priority:          uint8(cfg.Sacn.Priority),
			MulticastTTL:      cfg.Sacn.MulticastTTL,
			KeepAliveInterval: cfg.Sacn.KeepAliveInterval(),
			Preview:           cfg.Sacn.Preview,
			SyncAddress:       uint16(cfg.Sacn.SyncUniverse),
			Logger:            log,
		})
		if err != nil {
			return fmt.Errorf("creating sACN server: %w", err)
		}

		if cfg.Sacn.Receive {
			sacnReceiver, err = sacn.NewReceiver(sacn.ReceiverOptions{
				InterfaceName: cfg.Sacn.Interface,
				OwnSourceName: cfg.Sacn.SourceName,
				OnData: func(addr dmx.PortAddress, data []byte, source string) {
					applyReceived(addr, data, "sacn:"+source)
				},
				Logger: log,
			})
			if err != nil {
				return fmt.Errorf("creating sACN receiver: %w", err)
			}
		}
	} else {
		log.Info("sACN disabled")
	}

	// Build one store per universe, each wired to its protocol sender
	var throttles []*throttledSender
	defer func() {
		for _, t := range throttles {
			t.Stop()
		}
	}()
	for _, u := range plan {
		var sender universe.FrameSender
		switch u.protocol {
		case "artnet":
			if artnetServer == nil {
				return fmt.Errorf("universe %s uses artnet but artnet is disabled", u.addr)
			}
			sender = &artnetSender{server: artnetServer}
		case "sacn":
			if sacnServer == nil {
				return fmt.Errorf("universe %s uses sacn but sacn is disabled", u.addr)
			}
			sender = &sacnSender{server: sacnServer, universe: u.sacnID}
		}

		if limit := u.cfg.RateLimit(); limit > 0 {
			t := newThrottledSender(sender, limit, log)
			throttles = append(throttles, t)
			sender = t
		}

		stores[u.addr] = universe.NewStore(universe.Options{
			Address:       u.addr,
			Sender:        sender,
			PartialFrames: u.cfg.PartialFrames,
			Logger:        log,
		})
		log.Info("universe configured",
			"address", u.addr.String(),
			"protocol", u.protocol,
			"partial_frames", u.cfg.PartialFrames,
			"rate_limit_ms", u.cfg.RateLimitMs,
		)
	}

	// Animation engine
	engine := animation.NewEngine(cfg.Animation.MaxFPS, log)
	defer func() {
		log.Info("stopping animation engine")
		engine.Stop()
	}()

	// MQTT bridge
	if mqttClient != nil {
		br, err = bridge.New(bridge.Options{
			MQTT:      mqttClient,
			Stores:    stores,
			Engine:    engine,
			NodeLog:   nodeLog,
			MinKelvin: cfg.Animation.MinKelvin,
			MaxKelvin: cfg.Animation.MaxKelvin,
			Logger:    log,
		})
		if err != nil {
			return fmt.Errorf("creating MQTT bridge: %w", err)
		}
	}

	// Everything is wired; start the protocol servers
	if artnetServer != nil {
		if startErr := artnetServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting Art-Net server: %w", startErr)
		}
		defer func() {
			log.Info("stopping Art-Net server")
			artnetServer.Stop()
		}()
		for _, n := range cfg.ArtNet.Nodes {
			addr, parseErr := dmx.ParsePortAddress(n.Address)
			if parseErr != nil {
				return fmt.Errorf("parsing manual node address %q: %w", n.Address, parseErr)
			}
			if addErr := artnetServer.AddManualNode(addr, n.Host, n.Port); addErr != nil {
				return fmt.Errorf("adding manual node %s: %w", n.Host, addErr)
			}
		}
		log.Info("Art-Net server started",
			"broadcast", cfg.ArtNet.BroadcastAddress,
			"manual_nodes", len(cfg.ArtNet.Nodes),
		)
	}

	if sacnServer != nil {
		if startErr := sacnServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting sACN server: %w", startErr)
		}
		defer func() {
			log.Info("stopping sACN server")
			sacnServer.Stop()
		}()
		for _, u := range plan {
			if u.protocol != "sacn" {
				continue
			}
			if addErr := sacnServer.AddUniverse(u.sacnID, u.cfg.UnicastDest); addErr != nil {
				return fmt.Errorf("adding sACN universe %d: %w", u.sacnID, addErr)
			}
		}
		log.Info("sACN server started", "source_name", cfg.Sacn.SourceName)
	}

	if sacnReceiver != nil {
		if startErr := sacnReceiver.Start(ctx); startErr != nil {
			return fmt.Errorf("starting sACN receiver: %w", startErr)
		}
		defer func() {
			log.Info("stopping sACN receiver")
			sacnReceiver.Stop()
		}()
		subscribed := 0
		for _, u := range plan {
			if u.protocol != "sacn" || !u.cfg.Subscribe {
				continue
			}
			if subErr := sacnReceiver.Subscribe(u.sacnID); subErr != nil {
				return fmt.Errorf("subscribing to sACN universe %d: %w", u.sacnID, subErr)
			}
			subscribed++
		}
		log.Info("sACN receiver started", "subscriptions", subscribed)
	}

	// Start the bridge after the servers so command-driven frames have
	// somewhere to go
	if br != nil {
		if startErr := br.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			br.Stop()
		}()
	}

	// Periodic telemetry snapshots
	if telemetryClient != nil {
		go metricsLoop(ctx, telemetryClient, artnetServer, engine, plan, stores)
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, telemetryClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: bridge, receiver,
	// servers, engine, throttles, InfluxDB, MQTT, database.

	log.Info("DMX Core stopped")
	return nil
}

// universePlan is one configured universe resolved to its protocol
// address.
type universePlan struct {
	protocol string
	addr     dmx.PortAddress
	sacnID   int
	cfg      config.UniverseConfig
}

// resolveUniverses parses the configured universe list into port
// addresses and rejects duplicates.
func resolveUniverses(universes []config.UniverseConfig) ([]universePlan, error) {
	plan := make([]universePlan, 0, len(universes))
	seen := make(map[dmx.PortAddress]struct{}, len(universes))

	for i, u := range universes {
		p := universePlan{protocol: u.Protocol, cfg: u}
		switch u.Protocol {
		case "artnet":
			addr, err := dmx.ParsePortAddress(u.Address)
			if err != nil {
				return nil, fmt.Errorf("universes[%d]: %w", i, err)
			}
			p.addr = addr
		case "sacn":
			id, err := strconv.Atoi(u.Address)
			if err != nil {
				return nil, fmt.Errorf("universes[%d]: parsing sACN universe %q: %w", i, u.Address, err)
			}
			p.sacnID = id
			p.addr = dmx.SacnPortAddress(id)
		default:
			return nil, fmt.Errorf("universes[%d]: unknown protocol %q", i, u.Protocol)
		}

		if _, dup := seen[p.addr]; dup {
			return nil, fmt.Errorf("universes[%d]: duplicate address %s", i, p.addr)
		}
		seen[p.addr] = struct{}{}
		plan = append(plan, p)
	}

	return plan, nil
}

// artnetPollRange returns the lowest and highest Art-Net port addresses
// in the plan, bounding ArtPoll discovery.
func artnetPollRange(plan []universePlan) (bottom, top dmx.PortAddress) {
	first := true
	for _, u := range plan {
		if u.protocol != "artnet" {
			continue
		}
		if first {
			bottom, top = u.addr, u.addr
			first = false
			continue
		}
		if u.addr.Packed() < bottom.Packed() {
			bottom = u.addr
		}
		if u.addr.Packed() > top.Packed() {
			top = u.addr
		}
	}
	return bottom, top
}

// getConfigPath returns the configuration file path.
// Uses DMXCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DMXCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - telemetryClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, telemetryClient *telemetry.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if telemetryClient != nil {
		if err := telemetryClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// metricsLoop periodically snapshots server counters into InfluxDB.
func metricsLoop(ctx context.Context, client *telemetry.Client, server *artnet.Server, engine *animation.Engine, plan []universePlan, stores map[dmx.PortAddress]*universe.Store) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if server != nil {
				addresses := 0
				nodes := server.Nodes()
				for _, n := range nodes {
					addresses += len(n.Addresses)
				}
				client.WriteNodeCount(len(nodes), addresses)

				stats := server.GetStats()
				client.WritePoint("artnet_server",
					map[string]string{"source": "dmxd"},
					map[string]interface{}{
						"frames_sent":      stats.FramesSent,
						"packets_received": stats.PacketsReceived,
						"polls_sent":       stats.PollsSent,
					},
				)
			}
			for _, u := range plan {
				store, ok := stores[u.addr]
				if !ok {
					continue
				}
				active := 0
				for _, v := range store.Snapshot() {
					if v > 0 {
						active++
					}
				}
				client.WriteUniverseMetric(u.addr.String(), u.protocol, "active_channels", float64(active))
			}
			client.WriteAnimationMetric(engine.ActiveCount())
		}
	}
}

// artnetSender adapts the Art-Net server to universe.FrameSender.
type artnetSender struct {
	server *artnet.Server
}

// SendFrame implements universe.FrameSender.
func (s *artnetSender) SendFrame(addr dmx.PortAddress, data []byte) error {
	_, err := s.server.SendDmx(addr, data)
	return err
}

// sacnSender adapts one sACN universe to universe.FrameSender.
type sacnSender struct {
	server   *sacn.Server
	universe int
}

// SendFrame implements universe.FrameSender.
func (s *sacnSender) SendFrame(_ dmx.PortAddress, data []byte) error {
	return s.server.SendDmxData(s.universe, data)
}

// throttledSender coalesces frames through a rate limiter: rapid
// updates overwrite the pending frame and only the latest goes out.
type throttledSender struct {
	inner   universe.FrameSender
	limiter *ratelimit.Limiter
	log     *logging.Logger

	mu    sync.Mutex
	addr  dmx.PortAddress
	frame []byte
}

func newThrottledSender(inner universe.FrameSender, interval time.Duration, log *logging.Logger) *throttledSender {
	t := &throttledSender{inner: inner, log: log}
	t.limiter = ratelimit.New(t.flush, interval, interval*rateForceMultiplier)
	return t
}

// SendFrame implements universe.FrameSender. It never fails; delivery
// errors surface when the limiter flushes.
func (t *throttledSender) SendFrame(addr dmx.PortAddress, data []byte) error {
	t.mu.Lock()
	t.addr = addr
	t.frame = append(t.frame[:0], data...)
	t.mu.Unlock()

	t.limiter.ScheduleUpdate()
	return nil
}

func (t *throttledSender) flush() {
	t.mu.Lock()
	addr := t.addr
	frame := append([]byte(nil), t.frame...)
	t.mu.Unlock()

	if len(frame) == 0 {
		return
	}
	if err := t.inner.SendFrame(addr, frame); err != nil {
		t.log.Error("sending throttled frame", "universe", addr.String(), "error", err)
	}
}

// Stop flushes any pending frame and stops the limiter.
func (t *throttledSender) Stop() {
	t.limiter.Stop()
	t.flush()
}
