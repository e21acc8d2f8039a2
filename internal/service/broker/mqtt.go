// Package broker mirrors room broadcasts onto an MQTT broker so external
// consumers can follow a stream without a websocket.
package broker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/zhouzirui/fake-audience/backend/internal/service/hub"
)

const (
	connectTimeout   = 5 * time.Second
	publishTimeout   = 2 * time.Second
	defaultQueueSize = 256
)

// Config describes the MQTT connection.
type Config struct {
	Broker      string
	TopicPrefix string
	ClientID    string
	// QueueSize bounds the messages waiting for the broker; extra ones are dropped.
	QueueSize int
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Broker) != ""
}

// Stats counts mirror activity.
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
	Dropped   uint64
}

// MQTTMirror publishes every hub broadcast to <prefix>/<streamId>/<event>.
// Broadcasts are queued and sent by a single drain goroutine, so a slow
// broker never holds up the hub.
type MQTTMirror struct {
	cfg    Config
	client mqtt.Client

	outbox   chan hub.Message
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
	dropped   uint64
}

// NewMQTTMirror creates an unconnected mirror.
func NewMQTTMirror(cfg Config) *MQTTMirror {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "fake-audience"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "fake-audience-backend"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &MQTTMirror{
		cfg:    cfg,
		outbox: make(chan hub.Message, cfg.QueueSize),
		stop:   make(chan struct{}),
	}
}

// Connect dials the broker with auto-reconnect enabled.
func (m *MQTTMirror) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(m.cfg.Broker))
	opts.SetClientID(m.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		m.setConnected(true)
		log.Printf("[mqtt] connected to %s as %s", m.cfg.Broker, m.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.setConnected(false)
		log.Printf("[mqtt] connection lost, auto-reconnecting: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	timeout := connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	m.attach(client)
	return nil
}

// attach binds a connected client and starts the drain goroutine.
func (m *MQTTMirror) attach(client mqtt.Client) {
	m.mu.Lock()
	m.client = client
	m.connected = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.drain()
}

// Publish implements hub.Mirror. It only enqueues and drops the message when
// the outbox is full.
func (m *MQTTMirror) Publish(msg hub.Message) {
	if !m.isConnected() {
		return
	}

	select {
	case m.outbox <- msg:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
	}
}

func (m *MQTTMirror) drain() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case msg := <-m.outbox:
			m.send(msg)
		}
	}
}

func (m *MQTTMirror) send(msg hub.Message) {
	payload, err := msg.Encode()
	if err != nil {
		m.countError()
		log.Printf("[mqtt] encode %s failed: %v", msg.Event, err)
		return
	}

	token := m.client.Publish(m.Topic(msg.StreamID, msg.Event), 0, false, payload)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		m.countError()
		return
	}
	m.mu.Lock()
	m.published++
	m.mu.Unlock()
}

// Topic builds the topic for one event. MQTT wildcards and separators in the
// stream id are replaced so a stream id always occupies one topic level.
func (m *MQTTMirror) Topic(streamID, event string) string {
	level := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(streamID)
	if level == "" {
		level = "_"
	}
	return strings.TrimSuffix(m.cfg.TopicPrefix, "/") + "/" + level + "/" + event
}

// Disconnect stops the drain goroutine and closes the connection with a
// short grace period. Queued messages that were not sent yet are discarded.
func (m *MQTTMirror) Disconnect() {
	m.setConnected(false)
	m.stopOnce.Do(func() { close(m.stop) })
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
		log.Printf("[mqtt] disconnected")
	}
	m.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (m *MQTTMirror) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Connected: m.connected, Published: m.published, Errors: m.errors, Dropped: m.dropped}
}

func (m *MQTTMirror) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MQTTMirror) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected && m.client != nil
}

func (m *MQTTMirror) countError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

func brokerURL(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		return addr
	}
	return "tcp://" + addr
}
