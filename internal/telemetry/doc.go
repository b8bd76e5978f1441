// Package telemetry provides InfluxDB connectivity for DMX Core.
//
// It wraps the official influxdb-client-go v2 library with DMX Core-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Per-universe frame output rates
//   - Art-Net node population over time
//   - Inbound sACN packet accounting
//   - Animation engine activity
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "dmxcore",
//	    Bucket: "metrics",
//	}
//
//	client, err := telemetry.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write universe metrics
//	client.WriteUniverseMetric("0/0/1", "artnet", "frames_sent", 40)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency frame metrics.
package telemetry
