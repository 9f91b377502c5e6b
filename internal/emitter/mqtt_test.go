package emitter

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes; other methods are unused and panic via the
// nil embedded interface.
type fakeClient struct {
	mqtt.Client

	mu   sync.Mutex
	msgs []published
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func (c *fakeClient) IsConnected() bool { return true }
func (c *fakeClient) Disconnect(uint)   {}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.msgs...)
}

func connectedEmitter(client *fakeClient) *MQTTEmitter {
	e := NewMQTTEmitter(Settings{Broker: "localhost:1883", ClientID: "test", TopicPrefix: "city", QoS: 1})
	e.Client = client
	e.setConnected(true)
	return e
}

var session = types.Session{ID: "abc", Source: "junction.mp4", Stem: "junction"}

func TestPublishPayloadAndTopic(t *testing.T) {
	client := &fakeClient{}
	e := connectedEmitter(client)

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, e.Publish(session, snapshot.HistoryEntry{
		Time: at, Total: 5, Counts: map[string]int{"North": 2, "South": 3},
	}))

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "city/junction/counts", msgs[0].topic)
	assert.Equal(t, byte(1), msgs[0].qos)

	var p Payload
	require.NoError(t, json.Unmarshal(msgs[0].payload, &p))
	assert.Equal(t, "abc", p.Session)
	assert.Equal(t, "junction.mp4", p.Source)
	assert.Equal(t, 5, p.Total)
	assert.Equal(t, map[string]int{"North": 2, "South": 3}, p.Counts)
	assert.True(t, at.Equal(p.Time))

	assert.Equal(t, uint64(1), e.Stats().Published["city/junction/counts"])
}

func TestPublishNotConnected(t *testing.T) {
	e := NewMQTTEmitter(Settings{})
	assert.Error(t, e.Publish(session, snapshot.HistoryEntry{}))
	assert.Equal(t, uint64(1), e.Stats().Errors)
	assert.Equal(t, "traffic/junction/counts", e.Topic("junction"))
}

func TestPublishBrokerError(t *testing.T) {
	client := &fakeClient{err: errors.New("refused")}
	e := connectedEmitter(client)

	assert.Error(t, e.Publish(session, snapshot.HistoryEntry{}))
	assert.Equal(t, uint64(1), e.Stats().Errors)
}

func TestSessionSinkDeliversOnClose(t *testing.T) {
	client := &fakeClient{}
	e := connectedEmitter(client)

	sink, err := e.SinkFactory()(session)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		assert.True(t, sink.Offer(snapshot.HistoryEntry{Time: time.Now(), Total: i}))
	}
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	assert.Len(t, client.messages(), 3)
	assert.False(t, sink.Offer(snapshot.HistoryEntry{}), "closed sink refuses entries")
}

func TestDisconnect(t *testing.T) {
	e := connectedEmitter(&fakeClient{})
	require.NoError(t, e.Disconnect())
	assert.False(t, e.Stats().Connected)
}
