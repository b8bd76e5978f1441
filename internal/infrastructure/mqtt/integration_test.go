//go:build integration

package mqtt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/dmx-core/internal/infrastructure/config"
)

// Integration tests for MQTT connectivity and reconnection behaviour.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...
//
// Note: Some tests may be flaky in CI due to timing dependencies.
// Consider running with: go test -tags=integration -count=1 -v ...

func integrationConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "dmxcore-integration-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestIntegration_Connect(t *testing.T) {
	cfg := integrationConfig()

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestIntegration_ConnectInvalidBroker(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if err == nil {
		t.Fatal("Connect() expected error for invalid broker")
	}

	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_Close(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-close"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestIntegration_HealthCheck(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-health"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestIntegration_HealthCheckCancelled(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-health-cancel"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

func TestIntegration_HealthCheckDisconnected(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-health-closed"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestIntegration_Publish(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-pub-basic"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{}.UniverseSet("0/0/1")
	payload := []byte(`{"channels":{"1":255}}`)

	if err := client.Publish(topic, payload, 1, false); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}

func TestIntegration_PublishRetained(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-pub-retained"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := Topics{}.UniverseState("0/0/1")
	payload := []byte(`{"channels":{"1":255}}`)

	if err := client.PublishRetained(topic, payload); err != nil {
		t.Errorf("PublishRetained() error = %v", err)
	}
}

func TestIntegration_PublishEmptyTopic(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-pub-empty"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.Publish("", []byte("test"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestIntegration_PublishInvalidQoS(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-pub-qos"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.Publish("dmx/test/topic", []byte("test"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
	}
}

func TestIntegration_PublishDisconnected(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-pub-closed"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	if err := client.Publish("dmx/test/topic", []byte("test"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Subscribe Tests
// =============================================================================

func TestIntegration_SubscriptionTracking(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-sub-track"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := []string{
		"dmx/int/test/topic1",
		"dmx/int/test/topic2",
		"dmx/int/test/topic3",
	}

	handler := func(topic string, payload []byte) error {
		return nil
	}

	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(topics))
	}

	for _, topic := range topics {
		if !client.HasSubscription(topic) {
			t.Errorf("HasSubscription(%s) = false, want true", topic)
		}
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	if client.SubscriptionCount() != len(topics)-1 {
		t.Errorf("SubscriptionCount() after unsubscribe = %d, want %d", client.SubscriptionCount(), len(topics)-1)
	}

	if client.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
}

func TestIntegration_SubscribeValidation(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-sub-valid"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}

	if err := client.Subscribe("dmx/test/topic", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos=3) error = %v, want ErrInvalidQoS", err)
	}

	if err := client.Subscribe("dmx/test/topic", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
}

// =============================================================================
// Publish-Subscribe Roundtrip Tests
// =============================================================================

func TestIntegration_MessageRoundtrip(t *testing.T) {
	cfg := integrationConfig()

	cfg.Broker.ClientID = "dmxcore-int-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "dmxcore-int-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topic := "dmx/int/roundtrip"
	expected := `{"channels":{"1":128}}`

	received := make(chan string, 1)
	var once sync.Once

	err = subClient.Subscribe(topic, 1, func(t string, p []byte) error {
		once.Do(func() {
			received <- string(p)
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.PublishString(topic, expected, 1, false); err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != expected {
			t.Errorf("Received = %q, want %q", msg, expected)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}

func TestIntegration_WildcardSubscription(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-wild-pub"

	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "dmxcore-int-wild-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	pattern := Topics{}.AllNodeEvents()
	var receivedMu sync.Mutex
	receivedTopics := make(map[string]bool)

	err = subClient.Subscribe(pattern, 1, func(topic string, payload []byte) error {
		receivedMu.Lock()
		receivedTopics[topic] = true
		receivedMu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	topics := []string{
		Topics{}.NodeEvent("192.168.1.50_1"),
		Topics{}.NodeEvent("192.168.1.51_1"),
		Topics{}.NodeEvent("192.168.1.52_2"),
	}

	for _, topic := range topics {
		if err := pubClient.PublishString(topic, `{"event":"discovered"}`, 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	time.Sleep(500 * time.Millisecond)

	receivedMu.Lock()
	defer receivedMu.Unlock()

	for _, topic := range topics {
		if !receivedTopics[topic] {
			t.Errorf("Did not receive message for topic %s", topic)
		}
	}
}

// =============================================================================
// Callback and Logger Tests
// =============================================================================

func TestIntegration_CallbacksRegistered(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-callbacks"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var connectCount int32
	var disconnectCount int32

	client.SetOnConnect(func() {
		atomic.AddInt32(&connectCount, 1)
	})

	client.SetOnDisconnect(func(err error) {
		atomic.AddInt32(&disconnectCount, 1)
	})

	client.SetOnConnect(nil)
	client.SetOnDisconnect(nil)
}

func TestIntegration_HandlerReturnsError(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-handler-err"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topic := "dmx/int/handler-error"
	handlerCalled := make(chan struct{}, 1)

	err = client.Subscribe(topic, 1, func(t string, p []byte) error {
		select {
		case handlerCalled <- struct{}{}:
		default:
		}
		return errors.New("handler error")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := client.PublishString(topic, "test", 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-handlerCalled:
	case <-time.After(2 * time.Second):
		t.Error("Handler was not called")
	}
}

func TestIntegration_LoggerSet(t *testing.T) {
	cfg := integrationConfig()
	cfg.Broker.ClientID = "dmxcore-int-logger"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	logger := &mockLogger{}
	client.SetLogger(logger)

	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}

	client.SetLogger(nil)

	if client.getLogger() != nil {
		t.Error("getLogger() should be nil after SetLogger(nil)")
	}
}

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
