// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultRetryInterval is the wait between failed connection attempts.
const DefaultRetryInterval = 5 * time.Second

// ErrNotConnected is returned when publishing before Connect succeeded.
var ErrNotConnected = errors.New("mqtt client not connected")

// Publisher sends detector results to the outside world.
type Publisher interface {
	PublishWeight(grams float64) error
	PublishStatus(msg string) error
}

// ClientConfig holds the connection settings shared by every MQTT client.
type ClientConfig struct {
	Broker        string
	ClientID      string
	Device        string
	TLS           *tls.Config
	RetryInterval time.Duration
	// Now is used for message timestamps; time.Now when nil.
	Now func() time.Time
}

func (c ClientConfig) retryInterval() time.Duration {
	if c.RetryInterval > 0 {
		return c.RetryInterval
	}
	return DefaultRetryInterval
}

func (c ClientConfig) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c ClientConfig) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(c.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetMaxReconnectInterval(c.retryInterval()).
		SetConnectTimeout(10 * time.Second)
	if c.TLS != nil {
		opts.SetTLSConfig(c.TLS)
	}
	return opts
}

// connect retries until the broker accepts the connection or ctx ends.
func connect(ctx context.Context, client mqtt.Client, cfg ClientConfig) error {
	log := logrus.WithFields(logrus.Fields{"broker": cfg.Broker, "clientId": cfg.ClientID})
	for {
		token := client.Connect()
		select {
		case <-token.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		if token.Error() == nil {
			log.Info("connected to MQTT broker")
			return nil
		}
		log.WithError(token.Error()).Warnf("MQTT connect failed, retrying in %s", cfg.retryInterval())

		timer := time.NewTimer(cfg.retryInterval())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// MQTTPublisher publishes weight and status messages for one device. It
// announces "connected" after every (re)connect and leaves "disconnected"
// as its last will.
type MQTTPublisher struct {
	cfg    ClientConfig
	topics Topics
	client mqtt.Client
}

// NewMQTTPublisher prepares a client; call Connect before publishing.
func NewMQTTPublisher(cfg ClientConfig, topics Topics) (*MQTTPublisher, error) {
	p := &MQTTPublisher{cfg: cfg, topics: topics}

	will, err := json.Marshal(StatusMessage{Message: StatusDisconnected, Device: cfg.Device})
	if err != nil {
		return nil, fmt.Errorf("marshal last will: %w", err)
	}

	opts := cfg.clientOptions().
		SetWill(topics.Status, string(will), 1, true).
		SetOnConnectHandler(func(mqtt.Client) {
			if err := p.PublishStatus(StatusConnected); err != nil {
				logrus.WithError(err).Error("publish connected status")
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logrus.WithError(err).Warn("MQTT connection lost")
		})

	p.client = mqtt.NewClient(opts)
	return p, nil
}

// Connect blocks until the broker is reachable, retrying every
// RetryInterval, or until ctx is done.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	return connect(ctx, p.client, p.cfg)
}

// PublishWeight sends one reported weight. Weights are not retained so a
// subscriber that connects later never sees a visit twice.
func (p *MQTTPublisher) PublishWeight(grams float64) error {
	return p.publish(p.topics.Weight, false, WeightMessage{
		Weight:    grams,
		Device:    p.cfg.Device,
		SessionID: uuid.NewString(),
		Timestamp: p.cfg.now().UTC().Format(time.RFC3339),
	})
}

// PublishStatus sends a retained status message.
func (p *MQTTPublisher) PublishStatus(msg string) error {
	return p.publish(p.topics.Status, true, StatusMessage{
		Message:   msg,
		Device:    p.cfg.Device,
		Timestamp: p.cfg.now().UTC().Format(time.RFC3339),
	})
}

func (p *MQTTPublisher) publish(topic string, retained bool, v any) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("publish %s: %w", topic, ErrNotConnected)
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	token := p.client.Publish(topic, 1, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	logrus.WithFields(logrus.Fields{"topic": topic, "payload": string(payload)}).Debug("published")
	return nil
}

// Close disconnects, waiting up to 250ms for in-flight messages.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// Subscriber receives weight and status messages.
type Subscriber struct {
	cfg    ClientConfig
	client mqtt.Client

	mu   sync.Mutex
	subs map[string]mqtt.MessageHandler
}

// NewSubscriber prepares a client. Subscriptions registered with OnWeight
// and OnStatus are restored after every reconnect.
func NewSubscriber(cfg ClientConfig) *Subscriber {
	s := &Subscriber{cfg: cfg, subs: make(map[string]mqtt.MessageHandler)}
	opts := cfg.clientOptions().
		SetCleanSession(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			s.mu.Lock()
			subs := make(map[string]mqtt.MessageHandler, len(s.subs))
			for topic, handler := range s.subs {
				subs[topic] = handler
			}
			s.mu.Unlock()
			for topic, handler := range subs {
				if err := subscribe(c, topic, handler); err != nil {
					logrus.WithError(err).WithField("topic", topic).Error("resubscribe failed")
				}
			}
		})
	s.client = mqtt.NewClient(opts)
	return s
}

func (s *Subscriber) Connect(ctx context.Context) error {
	return connect(ctx, s.client, s.cfg)
}

// OnWeight delivers decoded weight messages from topic. Malformed payloads
// are logged and dropped.
func (s *Subscriber) OnWeight(topic string, fn func(topic string, m WeightMessage)) error {
	return s.add(topic, func(_ mqtt.Client, msg mqtt.Message) {
		m, err := DecodeWeight(msg.Payload())
		if err != nil {
			logrus.WithError(err).WithField("topic", msg.Topic()).Warn("dropping weight message")
			return
		}
		fn(msg.Topic(), m)
	})
}

// OnStatus delivers decoded status messages from topic.
func (s *Subscriber) OnStatus(topic string, fn func(topic string, m StatusMessage)) error {
	return s.add(topic, func(_ mqtt.Client, msg mqtt.Message) {
		m, err := DecodeStatus(msg.Payload())
		if err != nil {
			logrus.WithError(err).WithField("topic", msg.Topic()).Warn("dropping status message")
			return
		}
		fn(msg.Topic(), m)
	})
}

func (s *Subscriber) add(topic string, handler mqtt.MessageHandler) error {
	s.mu.Lock()
	s.subs[topic] = handler
	s.mu.Unlock()
	if !s.client.IsConnectionOpen() {
		return nil
	}
	return subscribe(s.client, topic, handler)
}

func subscribe(c mqtt.Client, topic string, handler mqtt.MessageHandler) error {
	token := c.Subscribe(topic, 1, handler)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	logrus.WithField("topic", topic).Info("subscribed")
	return nil
}

func (s *Subscriber) Close() {
	s.client.Disconnect(250)
}
