package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for DMX Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig       `yaml:"site"`
	Database  DatabaseConfig   `yaml:"database"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig   `yaml:"influxdb"`
	Logging   LoggingConfig    `yaml:"logging"`
	ArtNet    ArtNetConfig     `yaml:"artnet"`
	Sacn      SacnConfig       `yaml:"sacn"`
	Animation AnimationConfig  `yaml:"animation"`
	Universes []UniverseConfig `yaml:"universes"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// ArtNetConfig contains Art-Net protocol settings.
type ArtNetConfig struct {
	Enabled bool `yaml:"enabled"`

	// BindAddress is the local IP to bind; empty binds all interfaces.
	BindAddress string `yaml:"bind_address"`

	// BroadcastAddress is where ArtPoll discovery packets go.
	// Default: "255.255.255.255"; set the subnet broadcast on routed
	// networks.
	BroadcastAddress string `yaml:"broadcast_address"`

	// ShortName and LongName identify this controller on the network.
	ShortName string `yaml:"short_name"`
	LongName  string `yaml:"long_name"`

	// RetransmitMs paces per-universe frame retransmission in
	// milliseconds. 0 disables retransmission (send-once).
	RetransmitMs int `yaml:"retransmit_ms"`

	// Diagnostics requests ArtDiagData from polled nodes.
	Diagnostics bool `yaml:"diagnostics"`

	// Nodes lists static unicast targets, bypassing discovery.
	Nodes []ManualNodeConfig `yaml:"nodes"`
}

// ManualNodeConfig is a statically configured Art-Net node.
type ManualNodeConfig struct {
	// Address is the node's port address, "net/subnet/universe" or a
	// bare universe number.
	Address string `yaml:"address"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// SacnConfig contains sACN (E1.31) protocol settings.
type SacnConfig struct {
	Enabled bool `yaml:"enabled"`

	// BindAddress is the local IP for the sending socket.
	BindAddress string `yaml:"bind_address"`

	// SourceName identifies this sender, up to 64 bytes.
	SourceName string `yaml:"source_name"`

	// Priority arbitrates between sources, 0-200. 0 selects the
	// protocol default of 100.
	Priority int `yaml:"priority"`

	// CID pins the component identifier to a fixed UUID; empty
	// generates one per run.
	CID string `yaml:"cid"`

	// MulticastTTL bounds multicast propagation.
	MulticastTTL int `yaml:"multicast_ttl"`

	// KeepAliveMs paces keep-alive retransmission in milliseconds.
	// 0 selects the 800ms E1.31 default; negative disables it.
	KeepAliveMs int `yaml:"keep_alive_ms"`

	// SyncUniverse, when nonzero, stamps output with a
	// synchronization address.
	SyncUniverse int `yaml:"sync_universe"`

	// Preview marks all output as preview data.
	Preview bool `yaml:"preview"`

	// Receive enables the multicast receiver for inbound universes.
	Receive bool `yaml:"receive"`

	// Interface selects the NIC for multicast joins; empty uses the
	// system default.
	Interface string `yaml:"interface"`
}

// AnimationConfig contains animation engine settings.
type AnimationConfig struct {
	// MaxFPS caps the animation frame rate. 0 selects 40.
	MaxFPS int `yaml:"max_fps"`

	// MinKelvin and MaxKelvin bound tunable-white interpolation.
	// 0 selects 2700 and 6500 respectively.
	MinKelvin float64 `yaml:"min_kelvin"`
	MaxKelvin float64 `yaml:"max_kelvin"`
}

// UniverseConfig describes one DMX universe this instance outputs.
type UniverseConfig struct {
	// Protocol selects the transport: "artnet" or "sacn".
	Protocol string `yaml:"protocol"`

	// Address is the port address. Art-Net accepts
	// "net/subnet/universe" or a bare number; sACN takes the E1.31
	// universe ID (1-63999).
	Address string `yaml:"address"`

	// PartialFrames trims output frames to the configured channel
	// span instead of always sending 512 channels.
	PartialFrames bool `yaml:"partial_frames"`

	// RateLimitMs throttles outbound frames in milliseconds. 0
	// disables throttling.
	RateLimitMs int `yaml:"rate_limit_ms"`

	// UnicastDest sends sACN to a fixed host instead of multicast,
	// "host" or "host:port".
	UnicastDest string `yaml:"unicast_dest"`

	// Subscribe also listens for inbound data on this universe.
	Subscribe bool `yaml:"subscribe"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DMXCORE_SECTION_KEY
// For example: DMXCORE_DATABASE_PATH, DMXCORE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "DMX Core",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/dmxcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dmx-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		ArtNet: ArtNetConfig{
			Enabled:          true,
			BroadcastAddress: "255.255.255.255",
			ShortName:        "dmx-core",
			LongName:         "DMX Core Art-Net controller",
			RetransmitMs:     900,
		},
		Sacn: SacnConfig{
			SourceName:   "dmx-core",
			MulticastTTL: 1,
		},
		Animation: AnimationConfig{
			MaxFPS: 40,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DMXCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("DMXCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DMXCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DMXCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DMXCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("DMXCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Art-Net
	if v := os.Getenv("DMXCORE_ARTNET_BIND"); v != "" {
		cfg.ArtNet.BindAddress = v
	}
	if v := os.Getenv("DMXCORE_ARTNET_BROADCAST"); v != "" {
		cfg.ArtNet.BroadcastAddress = v
	}

	// sACN
	if v := os.Getenv("DMXCORE_SACN_SOURCE_NAME"); v != "" {
		cfg.Sacn.SourceName = v
	}
	if v := os.Getenv("DMXCORE_SACN_PRIORITY"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Sacn.Priority = p
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Art-Net validation
	if c.ArtNet.Enabled {
		if net.ParseIP(c.ArtNet.BroadcastAddress) == nil {
			errs = append(errs, fmt.Sprintf("artnet.broadcast_address %q is not a valid IP", c.ArtNet.BroadcastAddress))
		}
		if c.ArtNet.BindAddress != "" && net.ParseIP(c.ArtNet.BindAddress) == nil {
			errs = append(errs, fmt.Sprintf("artnet.bind_address %q is not a valid IP", c.ArtNet.BindAddress))
		}
	}

	// sACN validation
	if c.Sacn.Priority < 0 || c.Sacn.Priority > 200 {
		errs = append(errs, "sacn.priority must be between 0 and 200")
	}
	if c.Sacn.SyncUniverse < 0 || c.Sacn.SyncUniverse > 63999 {
		errs = append(errs, "sacn.sync_universe must be between 0 and 63999")
	}
	if len(c.Sacn.SourceName) > 64 {
		errs = append(errs, "sacn.source_name must be at most 64 bytes")
	}

	// Animation validation
	if c.Animation.MaxFPS < 0 {
		errs = append(errs, "animation.max_fps must not be negative")
	}
	if c.Animation.MinKelvin != 0 && c.Animation.MaxKelvin != 0 &&
		c.Animation.MinKelvin >= c.Animation.MaxKelvin {
		errs = append(errs, "animation.min_kelvin must be below animation.max_kelvin")
	}

	// Universe validation
	for i, u := range c.Universes {
		switch strings.ToLower(u.Protocol) {
		case "artnet":
		case "sacn":
			id, err := strconv.Atoi(u.Address)
			if err != nil || id < 1 || id > 63999 {
				errs = append(errs, fmt.Sprintf("universes[%d].address %q must be an sACN universe 1-63999", i, u.Address))
			}
		default:
			errs = append(errs, fmt.Sprintf("universes[%d].protocol must be \"artnet\" or \"sacn\"", i))
		}
		if u.Address == "" {
			errs = append(errs, fmt.Sprintf("universes[%d].address is required", i))
		}
		if u.RateLimitMs < 0 {
			errs = append(errs, fmt.Sprintf("universes[%d].rate_limit_ms must not be negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// RetransmitInterval returns the Art-Net retransmit pacing as a Duration.
func (c *ArtNetConfig) RetransmitInterval() time.Duration {
	return time.Duration(c.RetransmitMs) * time.Millisecond
}

// KeepAliveInterval returns the sACN keep-alive pacing as a Duration.
// Negative means disabled; zero means the protocol default.
func (c *SacnConfig) KeepAliveInterval() time.Duration {
	return time.Duration(c.KeepAliveMs) * time.Millisecond
}

// RateLimit returns the universe's frame throttle as a Duration.
func (u *UniverseConfig) RateLimit() time.Duration {
	return time.Duration(u.RateLimitMs) * time.Millisecond
}
