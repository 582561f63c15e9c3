package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"photo-intake-bot/internal/pkg/config"
	"photo-intake-bot/internal/pkg/model"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

var ErrNotConnected = errors.New("mqtt not connected")

// MQTTNotifier publishes dispatches to the print queue topic.
type MQTTNotifier struct {
	cfg    *config.MQTTCfg
	client mqtt.Client
	encode func(any) ([]byte, error)
}

func NewMQTTNotifier(cfg *config.MQTTCfg) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		slog.Info("MQTT connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost, will auto-reconnect", "error", err, "broker", cfg.Broker)
	}

	return newMQTTNotifier(cfg, mqtt.NewClient(opts))
}

func newMQTTNotifier(cfg *config.MQTTCfg, client mqtt.Client) (*MQTTNotifier, error) {
	encode, err := encoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return &MQTTNotifier{cfg: cfg, client: client, encode: encode}, nil
}

func encoder(name string) (func(any) ([]byte, error), error) {
	switch name {
	case "", "json":
		return json.Marshal, nil
	case "msgpack":
		return msgpack.Marshal, nil
	default:
		return nil, fmt.Errorf("unsupported mqtt encoding %q", name)
	}
}

func (n *MQTTNotifier) Connect(ctx context.Context) error {
	token := n.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func (n *MQTTNotifier) Notify(ctx context.Context, dispatch model.Dispatch) error {
	if !n.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := n.encode(dispatch)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch: %w", err)
	}

	token := n.client.Publish(n.cfg.Topic, n.cfg.QoS, false, payload)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	slog.Debug("Dispatch published", "topic", n.cfg.Topic, "qos", n.cfg.QoS, "size", len(payload), "dispatch_id", dispatch.ID)
	return nil
}

func (n *MQTTNotifier) Close() {
	if n.client.IsConnected() {
		n.client.Disconnect(250)
		slog.Info("MQTT disconnected")
	}
}
