package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"presencelight/internal/core"
	"presencelight/internal/poller"
)

// ErrNotStarted is returned when publishing before Start
var ErrNotStarted = errors.New("mqtt publisher not started")

// DefaultTopicPrefix is used when Config.TopicPrefix is empty
const DefaultTopicPrefix = "presencelight"

// Config holds the broker connection settings
type Config struct {
	Broker      string // e.g. mqtt://broker:1883 or mqtts://broker:8883
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
}

// presencePayload is the JSON published on the presence topic
type presencePayload struct {
	Availability string    `json:"availability"`
	Activity     string    `json:"activity"`
	InCall       bool      `json:"in_call"`
	PollID       string    `json:"poll_id"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Publisher manages the MQTT connection and publishes poll results.
// It implements poller.Observer.
type Publisher struct {
	cfg    Config
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// to begin the connection.
func New(cfg Config, logger *slog.Logger) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.ClientID == "" {
		cfg.ClientID = cfg.TopicPrefix
	}
	return &Publisher{
		cfg:    cfg,
		logger: logger.With("component", "mqtt"),
	}
}

// Start connects to the broker and waits up to timeout for the first
// connection. A timeout is logged, not returned: autopaho keeps retrying
// in the background.
func (p *Publisher) Start(ctx context.Context, timeout time.Duration) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, timeout)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	return nil
}

// Stop publishes "offline" and disconnects. The provided context
// controls how long to wait.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

// ObservePresence publishes the presence JSON and the in-call binary state
func (p *Publisher) ObservePresence(ctx context.Context, obs core.Observation) error {
	if p.cm == nil {
		return ErrNotStarted
	}

	payload, err := presenceJSON(obs)
	if err != nil {
		return err
	}

	if err := p.publish(ctx, p.stateTopic("presence"), payload); err != nil {
		return err
	}
	return p.publish(ctx, p.stateTopic("in_call"), []byte(onOff(obs.Active)))
}

// ObserveTransition publishes the light state after a successful command.
// Failed commands leave the retained state untouched.
func (p *Publisher) ObserveTransition(ctx context.Context, tr core.Transition) error {
	if p.cm == nil {
		return ErrNotStarted
	}
	if !tr.Success {
		return nil
	}
	return p.publish(ctx, p.stateTopic("light"), []byte(onOff(tr.On)))
}

func (p *Publisher) publish(ctx context.Context, topic string, payload []byte) error {
	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  true,
	}); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	p.logger.Debug("mqtt state published", "topic", topic)
	return nil
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed",
			"status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}

// --- Topic helpers ---

func (p *Publisher) availabilityTopic() string {
	return p.cfg.TopicPrefix + "/availability"
}

func (p *Publisher) stateTopic(entity string) string {
	return p.cfg.TopicPrefix + "/" + entity + "/state"
}

func presenceJSON(obs core.Observation) ([]byte, error) {
	payload, err := json.Marshal(presencePayload{
		Availability: obs.Status.Availability,
		Activity:     obs.Status.Activity,
		InCall:       obs.Active,
		PollID:       obs.PollID,
		ObservedAt:   obs.At.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal presence payload: %w", err)
	}
	return payload, nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// Ensure Publisher implements poller.Observer
var _ poller.Observer = (*Publisher)(nil)
