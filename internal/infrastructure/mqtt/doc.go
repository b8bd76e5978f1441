// Package mqtt provides MQTT client connectivity for DMX Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// DMX Core uses MQTT as its integration surface: universe state and
// node lifecycle events are published for home-automation systems,
// and channel set commands are accepted from them. The broker
// decouples the lighting core from its consumers.
//
//	DMX Core ↔ MQTT Broker ↔ Automation systems / dashboards
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to channel set commands
//	err = client.Subscribe(mqtt.Topics{}.AllUniverseSets(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a universe state snapshot
//	topic := mqtt.Topics{}.UniverseState("0/0/1")
//	client.Publish(topic, payload, 1, true)
package mqtt
