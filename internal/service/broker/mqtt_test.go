package broker

import (
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/fake-audience/backend/internal/service/hub"
)

func TestTopicLayout(t *testing.T) {
	m := NewMQTTMirror(Config{Broker: "localhost:1883", TopicPrefix: "studio/"})

	require.Equal(t, "studio/s1/fake-chat-message", m.Topic("s1", "fake-chat-message"))
	require.Equal(t, "studio/a_b_c_/audience-update", m.Topic("a/b+c#", "audience-update"))
	require.Equal(t, "studio/_/stream-stopped", m.Topic("", "stream-stopped"))
}

func TestDefaultsAndBrokerURL(t *testing.T) {
	m := NewMQTTMirror(Config{Broker: "localhost:1883"})
	require.Equal(t, "fake-audience/s1/x", m.Topic("s1", "x"))
	require.True(t, m.cfg.Enabled())
	require.False(t, Config{}.Enabled())

	require.Equal(t, "tcp://localhost:1883", brokerURL("localhost:1883"))
	require.Equal(t, "ssl://broker:8883", brokerURL("ssl://broker:8883"))
}

func TestPublishWhileDisconnectedIsDropped(t *testing.T) {
	m := NewMQTTMirror(Config{Broker: "localhost:1883"})
	m.Publish(hub.Message{Event: "x", StreamID: "s1", Timestamp: time.Now()})

	stats := m.Stats()
	require.False(t, stats.Connected)
	require.Zero(t, stats.Published)
	require.Zero(t, stats.Errors)
}

type doneToken struct {
	mqtt.Token
}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

// stalledClient blocks in Publish until release is closed, like a client
// whose outbound queue is full.
type stalledClient struct {
	mqtt.Client
	release chan struct{}
	entered chan struct{}
	once    sync.Once
	topics  chan string
}

func newStalledClient() *stalledClient {
	return &stalledClient{
		release: make(chan struct{}),
		entered: make(chan struct{}),
		topics:  make(chan string, 64),
	}
}

func (c *stalledClient) Publish(topic string, _ byte, _ bool, _ interface{}) mqtt.Token {
	c.once.Do(func() { close(c.entered) })
	<-c.release
	c.topics <- topic
	return doneToken{}
}

func (c *stalledClient) IsConnected() bool { return false }

func TestPublishDoesNotBlockOnStalledBroker(t *testing.T) {
	m := NewMQTTMirror(Config{Broker: "localhost:1883", QueueSize: 2})
	client := newStalledClient()
	m.attach(client)

	msg := hub.Message{Event: "fake-chat-message", StreamID: "s1", Timestamp: time.Now()}
	m.Publish(msg)
	select {
	case <-client.entered:
	case <-time.After(time.Second):
		t.Fatal("drain goroutine never reached the broker")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			m.Publish(msg)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked behind a stalled broker")
	}

	stats := m.Stats()
	require.Equal(t, uint64(8), stats.Dropped)
	require.Zero(t, stats.Published)

	close(client.release)
	require.Eventually(t, func() bool { return m.Stats().Published == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "fake-audience/s1/fake-chat-message", <-client.topics)

	m.Disconnect()
	require.False(t, m.Stats().Connected)
}

func TestHubBroadcastWithStalledMirror(t *testing.T) {
	m := NewMQTTMirror(Config{Broker: "localhost:1883", QueueSize: 1})
	client := newStalledClient()
	m.attach(client)
	defer func() {
		close(client.release)
		m.Disconnect()
	}()

	h := hub.New(hub.WithMirror(m))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			h.Broadcast("s1", "audience-update", i)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub broadcast stalled on the mirror")
	}
	require.Equal(t, uint64(20), h.Stats().Broadcasts)
}
