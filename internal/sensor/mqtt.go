// Package sensor feeds the step tracker from a pedometer that publishes over MQTT.
package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"step-tracker/internal/tracker"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	tokenTimeout   = 5 * time.Second

	// retainedTotalWait bounds how long a query waits for the broker to
	// deliver the retained daily total after subscribing.
	retainedTotalWait = 2 * time.Second
)

type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
}

// MQTT implements tracker.Sensor on top of a paho client.
type MQTT struct {
	client          mqtt.Client
	incrementsTopic string
	totalTopic      string
	logger          *zap.Logger

	totalWait  time.Duration
	firstTotal chan struct{}
	firstOnce  sync.Once

	mu          sync.Mutex
	onIncrement func(int)
	lastTotal   *Reading
	totalsSince time.Time
}

var _ tracker.Sensor = (*MQTT)(nil)

// NewMQTT builds a sensor whose client reconnects on its own and
// re-subscribes after every connect.
func NewMQTT(cfg MQTTConfig, logger *zap.Logger) *MQTT {
	m := newMQTT(logger)
	m.incrementsTopic, m.totalTopic = Topics(cfg.Topic)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(c mqtt.Client) { m.resubscribe() }).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Warn("pedometer broker connection lost", zap.Error(err))
		})
	m.client = mqtt.NewClient(opts)
	return m
}

// NewMQTTWithClient wraps an existing client. The caller handles reconnects.
func NewMQTTWithClient(client mqtt.Client, topic string, logger *zap.Logger) *MQTT {
	m := newMQTT(logger)
	m.client = client
	m.incrementsTopic, m.totalTopic = Topics(topic)
	return m
}

func newMQTT(logger *zap.Logger) *MQTT {
	return &MQTT{
		logger:     logger,
		totalWait:  retainedTotalWait,
		firstTotal: make(chan struct{}),
	}
}

// Connect dials the broker and subscribes to daily totals. With connect
// retry enabled the client keeps trying in the background after ctx expires.
func (m *MQTT) Connect(ctx context.Context) error {
	token := m.client.Connect()
	if err := wait(ctx, token, connectTimeout); err != nil {
		return fmt.Errorf("%w: connect: %v", tracker.ErrSensorUnavailable, err)
	}
	return m.subscribeTotals()
}

func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

func (m *MQTT) IsAvailable(context.Context) bool {
	return m.client.IsConnectionOpen()
}

// QueryCumulative answers from the latest daily total the device published,
// provided its timestamp falls inside [since, until]. Shortly after
// subscribing it waits for the retained total to arrive.
func (m *MQTT) QueryCumulative(ctx context.Context, since, until time.Time) (int, error) {
	if !m.client.IsConnectionOpen() {
		return 0, tracker.ErrSensorUnavailable
	}
	if err := m.awaitRetainedTotal(ctx); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastTotal == nil {
		return 0, fmt.Errorf("%w: no daily total received", tracker.ErrQueryUnsupported)
	}
	ts := m.lastTotal.Timestamp
	if ts.Before(since) || ts.After(until) {
		return 0, fmt.Errorf("%w: latest total at %s is outside the window", tracker.ErrQueryUnsupported, ts.Format(time.RFC3339))
	}
	return m.lastTotal.Steps, nil
}

func (m *MQTT) awaitRetainedTotal(ctx context.Context) error {
	m.mu.Lock()
	since := m.totalsSince
	m.mu.Unlock()
	if since.IsZero() {
		return nil
	}
	left := time.Until(since.Add(m.totalWait))
	if left <= 0 {
		return nil
	}

	timer := time.NewTimer(left)
	defer timer.Stop()
	select {
	case <-m.firstTotal:
	case <-timer.C:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", tracker.ErrSensorUnavailable, ctx.Err())
	}
	return nil
}

func (m *MQTT) Subscribe(onIncrement func(int)) (tracker.Subscription, error) {
	m.mu.Lock()
	m.onIncrement = onIncrement
	m.mu.Unlock()

	token := m.client.Subscribe(m.incrementsTopic, qos, m.handleIncrement)
	if err := wait(context.Background(), token, tokenTimeout); err != nil {
		m.mu.Lock()
		m.onIncrement = nil
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: subscribe %s: %v", tracker.ErrSensorUnavailable, m.incrementsTopic, err)
	}
	m.logger.Info("subscribed to step increments", zap.String("topic", m.incrementsTopic))
	return subscription{m: m}, nil
}

type subscription struct{ m *MQTT }

func (s subscription) Cancel() {
	s.m.mu.Lock()
	s.m.onIncrement = nil
	s.m.mu.Unlock()

	token := s.m.client.Unsubscribe(s.m.incrementsTopic)
	if err := wait(context.Background(), token, tokenTimeout); err != nil {
		s.m.logger.Warn("failed to unsubscribe from step increments", zap.Error(err))
	}
}

func (m *MQTT) resubscribe() {
	if err := m.subscribeTotals(); err != nil {
		m.logger.Warn("failed to subscribe to daily totals", zap.Error(err))
	}

	m.mu.Lock()
	active := m.onIncrement != nil
	m.mu.Unlock()
	if !active {
		return
	}
	token := m.client.Subscribe(m.incrementsTopic, qos, m.handleIncrement)
	if err := wait(context.Background(), token, tokenTimeout); err != nil {
		m.logger.Warn("failed to resubscribe to step increments", zap.Error(err))
	}
}

func (m *MQTT) subscribeTotals() error {
	m.mu.Lock()
	m.totalsSince = time.Now()
	m.mu.Unlock()

	token := m.client.Subscribe(m.totalTopic, qos, m.handleTotal)
	if err := wait(context.Background(), token, tokenTimeout); err != nil {
		return fmt.Errorf("subscribe %s: %w", m.totalTopic, err)
	}
	return nil
}

func (m *MQTT) handleIncrement(_ mqtt.Client, msg mqtt.Message) {
	var r Reading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		m.logger.Warn("dropping malformed step increment", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if r.Steps <= 0 {
		m.logger.Warn("dropping non-positive step increment", zap.Int("steps", r.Steps))
		return
	}

	m.mu.Lock()
	fn := m.onIncrement
	m.mu.Unlock()
	if fn != nil {
		fn(r.Steps)
	}
}

func (m *MQTT) handleTotal(_ mqtt.Client, msg mqtt.Message) {
	var r Reading
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		m.logger.Warn("dropping malformed daily total", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if r.Steps < 0 || r.Timestamp.IsZero() {
		m.logger.Warn("dropping invalid daily total", zap.Int("steps", r.Steps))
		return
	}

	m.mu.Lock()
	if m.lastTotal == nil || !r.Timestamp.Before(m.lastTotal.Timestamp) {
		m.lastTotal = &r
	}
	m.mu.Unlock()
	m.firstOnce.Do(func() { close(m.firstTotal) })
}

func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
