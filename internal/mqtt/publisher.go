// Package mqtt publishes device state snapshots and alert lines to a broker
// for bench dashboards. Publishing is fire-and-forget: broker trouble is
// logged and never disturbs the serial session.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/solar-control/backend/internal/models"
)

const publishTimeout = 2 * time.Second

// Options configures the broker connection.
type Options struct {
	Broker         string // e.g. tcp://127.0.0.1:1883
	ClientID       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
}

// Publisher wraps a paho client publishing to <prefix>/state and
// <prefix>/alerts.
type Publisher struct {
	client paho.Client
	opts   Options
	logger *zap.Logger
}

// Connect dials the broker and returns a ready publisher.
func Connect(opts Options, logger *zap.Logger) (*Publisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = "solar-panel"
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "solar"
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetConnectTimeout(opts.ConnectTimeout).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true)

	client := paho.NewClient(clientOpts)
	tok := client.Connect()
	if !tok.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", opts.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}

	logger.Info("mqtt publisher connected",
		zap.String("broker", opts.Broker),
		zap.String("prefix", opts.TopicPrefix))

	return &Publisher{client: client, opts: opts, logger: logger}, nil
}

// PublishState publishes a retained device state snapshot, so a dashboard
// joining late still sees the latest values.
func (p *Publisher) PublishState(state models.DeviceState) {
	payload, err := json.Marshal(state)
	if err != nil {
		p.logger.Warn("state payload marshal failed", zap.Error(err))
		return
	}
	p.publish(p.opts.TopicPrefix+"/state", true, payload)
}

// PublishAlert publishes one error or emergency log entry.
func (p *Publisher) PublishAlert(entry models.LogEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		p.logger.Warn("alert payload marshal failed", zap.Error(err))
		return
	}
	p.publish(p.opts.TopicPrefix+"/alerts", false, payload)
}

func (p *Publisher) publish(topic string, retain bool, payload []byte) {
	tok := p.client.Publish(topic, p.opts.QoS, retain, payload)
	if !tok.WaitTimeout(publishTimeout) {
		p.logger.Warn("mqtt publish timed out", zap.String("topic", topic))
		return
	}
	if err := tok.Error(); err != nil {
		p.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Close disconnects from the broker after a short quiesce for in-flight
// messages.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
