package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteUniverseMetric writes a single per-universe measurement to InfluxDB.
//
// This is the primary method for recording output statistics.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - address: Universe address string (e.g., "0/0/1" or "sacn/42")
//   - protocol: Transport protocol ("artnet" or "sacn")
//   - metric: The metric name (e.g., "frames_sent", "channels_active")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteUniverseMetric("0/0/1", "artnet", "frames_sent", 40)
//	client.WriteUniverseMetric("sacn/42", "sacn", "channels_active", 12)
func (c *Client) WriteUniverseMetric(address string, protocol string, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"universe_metrics",
		map[string]string{
			"address":  address,
			"protocol": protocol,
			"metric":   metric,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteNodeCount records the current Art-Net node population.
//
// Used for tracking how many output nodes are visible on the network.
//
// Parameters:
//   - count: Number of nodes currently in the registry
//   - addresses: Number of distinct port-addresses those nodes cover
func (c *Client) WriteNodeCount(count int, addresses int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"artnet_nodes",
		map[string]string{},
		map[string]interface{}{
			"count":     count,
			"addresses": addresses,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAnimationMetric records animation engine activity.
//
// Parameters:
//   - active: Number of animations currently running
func (c *Client) WriteAnimationMetric(active int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"animation",
		map[string]string{},
		map[string]interface{}{
			"active": active,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "dmx-01"},
//	    map[string]interface{}{"packets_received": 1024})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
