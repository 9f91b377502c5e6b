// Package emitter publishes zone count changes to an MQTT broker.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
	"github.com/dj-oyu/zone-traffic-monitor/internal/pipeline"
	"github.com/dj-oyu/zone-traffic-monitor/internal/snapshot"
	"github.com/dj-oyu/zone-traffic-monitor/pkg/types"
)

// Settings configures the broker connection.
type Settings struct {
	Broker      string // host:port
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// Payload is the JSON body published on every count change.
type Payload struct {
	Session string         `json:"session"`
	Source  string         `json:"source"`
	Time    time.Time      `json:"time"`
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
}

// MQTTEmitter publishes count changes to MQTT
type MQTTEmitter struct {
	cfg    Settings
	Client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg Settings) *MQTTEmitter {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "traffic"
	}
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect establishes connection to the MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		logger.Info("MQTT", "Connected to %s as %s", e.cfg.Broker, e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		logger.Warn("MQTT", "Connection lost, will auto-reconnect: %v", err)
	}

	e.Client = mqtt.NewClient(opts)

	logger.Info("MQTT", "Connecting to %s", e.cfg.Broker)
	token := e.Client.Connect()

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		e.Client.Disconnect(0) // stop background connect retries
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Topic returns the count topic for a source stem.
func (e *MQTTEmitter) Topic(stem string) string {
	return fmt.Sprintf("%s/%s/counts", e.cfg.TopicPrefix, stem)
}

// Publish sends one count entry for session
func (e *MQTTEmitter) Publish(session types.Session, entry snapshot.HistoryEntry) error {
	if !e.isConnected() {
		e.addError()
		return fmt.Errorf("mqtt not connected")
	}

	topic := e.Topic(session.Stem)
	payload, err := json.Marshal(Payload{
		Session: session.ID,
		Source:  session.Source,
		Time:    entry.Time,
		Total:   entry.Total,
		Counts:  entry.Counts,
	})
	if err != nil {
		e.addError()
		return fmt.Errorf("failed to marshal counts: %w", err)
	}

	token := e.Client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.addError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.addError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	logger.Debug("MQTT", "Published %s total=%d (%d bytes)", topic, entry.Total, len(payload))
	return nil
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() error {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		logger.Info("MQTT", "Disconnected")
	}
	e.setConnected(false)
	return nil
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// SinkFactory returns a per-session count sink that publishes from its own
// goroutine so the pipeline never waits on the broker.
func (e *MQTTEmitter) SinkFactory() pipeline.SinkFactory {
	return func(session types.Session) (pipeline.CountSink, error) {
		s := &sessionSink{
			emitter: e,
			session: session,
			entries: make(chan snapshot.HistoryEntry, 32),
			stop:    make(chan struct{}),
		}
		s.wg.Add(1)
		go s.run()
		return s, nil
	}
}

type sessionSink struct {
	emitter *MQTTEmitter
	session types.Session
	entries chan snapshot.HistoryEntry
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func (s *sessionSink) Offer(entry snapshot.HistoryEntry) bool {
	select {
	case <-s.stop:
		return false
	default:
	}
	select {
	case s.entries <- entry:
		return true
	default:
		return false
	}
}

func (s *sessionSink) run() {
	defer s.wg.Done()
	for {
		select {
		case entry := <-s.entries:
			s.publish(entry)
		case <-s.stop:
			for {
				select {
				case entry := <-s.entries:
					s.publish(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *sessionSink) publish(entry snapshot.HistoryEntry) {
	if err := s.emitter.Publish(s.session, entry); err != nil {
		logger.Debug("MQTT", "Count publish dropped: %v", err)
	}
}

func (s *sessionSink) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) addError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
