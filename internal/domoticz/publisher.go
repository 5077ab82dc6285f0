package domoticz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/zberg/go-smartclim/internal/config"
	"github.com/zberg/go-smartclim/pkg/smartclim"
)

const publishTimeout = 5 * time.Second

var (
	ErrNotConnected = errors.New("mqtt client not connected")
	ErrStopped      = errors.New("publisher stopped")
)

// Publisher sends Domoticz updates to an MQTT broker.
type Publisher struct {
	client mqtt.Client
	topic  string
	idx    int
	logger *slog.Logger

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPublisher configures an MQTT client for the broker in cfg. It does not
// connect; call Connect.
func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	p := newPublisher(nil, cfg.MQTTTopic, cfg.DomoticzIdx, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

func newPublisher(client mqtt.Client, topic string, idx int, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		idx:    idx,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Connect waits for the initial broker connection, honoring ctx and
// Disconnect. The client keeps reconnecting on its own afterwards.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return ErrStopped
	default:
	}

	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			p.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return ErrStopped
		default:
		}
	}
}

// Publish sends the reading as a device update.
func (p *Publisher) Publish(ctx context.Context, r smartclim.Reading) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	update := NewUpdate(p.idx, r)
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	token := p.client.Publish(p.topic, 1, false, data)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish timeout for topic %s", p.topic)
	}
	if err := token.Error(); err != nil {
		p.logger.Error("failed to publish update", "topic", p.topic, "error", err)
		return fmt.Errorf("publish update: %w", err)
	}

	p.logger.Debug("published update", "topic", p.topic, "idx", update.Idx, "svalue", update.SValue, "battery", update.Battery)
	return nil
}

// IsConnected returns whether the client is connected.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the publisher and closes the MQTT connection.
// It is safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })

	if p.client != nil {
		p.client.Disconnect(250)
	}

	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
