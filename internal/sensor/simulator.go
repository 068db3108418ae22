package sensor

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Simulator publishes synthetic pedometer data: a random increment every
// tick plus a retained daily total.
type Simulator struct {
	sensorID        string
	client          mqtt.Client
	incrementsTopic string
	totalTopic      string
	maxStep         int
	loc             *time.Location
	logger          *zap.Logger

	ticker *time.Ticker
	quit   chan struct{}
	done   chan struct{}

	mu    sync.Mutex
	day   string
	total int
}

func NewSimulator(sensorID string, client mqtt.Client, topic string, interval time.Duration, maxStep int, loc *time.Location, logger *zap.Logger) *Simulator {
	s := &Simulator{
		sensorID: sensorID,
		client:   client,
		maxStep:  maxStep,
		loc:      loc,
		logger:   logger,
		ticker:   time.NewTicker(interval),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.incrementsTopic, s.totalTopic = Topics(topic)
	return s
}

// Start begins publishing readings at regular intervals.
func (s *Simulator) Start() {
	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.quit:
				return
			case t := <-s.ticker.C:
				s.Step(t, rand.Intn(s.maxStep)+1)
			}
		}
	}()
}

// Step publishes one increment of delta taken at t and the updated total.
func (s *Simulator) Step(t time.Time, delta int) {
	s.mu.Lock()
	day := t.In(s.loc).Format("2006-01-02")
	if day != s.day {
		s.day = day
		s.total = 0
	}
	s.total += delta
	total := s.total
	s.mu.Unlock()

	s.publish(s.incrementsTopic, false, Reading{SensorID: s.sensorID, Timestamp: t, Steps: delta})
	s.publish(s.totalTopic, true, Reading{SensorID: s.sensorID, Timestamp: t, Steps: total})
}

func (s *Simulator) publish(topic string, retained bool, r Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		s.logger.Error("failed to encode reading", zap.Error(err))
		return
	}
	token := s.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		s.logger.Warn("failed to publish reading", zap.String("topic", topic), zap.Error(token.Error()))
	}
}

// Stop halts the simulator.
func (s *Simulator) Stop() {
	close(s.quit)
	s.ticker.Stop()
	<-s.done
}
