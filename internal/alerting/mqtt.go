package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const mqttTimeout = 10 * time.Second

// MQTTProvider publishes each notice as JSON to a broker topic.
type MQTTProvider struct {
	Broker   string `json:"broker"` // tcp://host:1883, ssl://host:8883
	Topic    string `json:"topic"`
	Username string `json:"username"`
	Password string `json:"password"`
	QoS      byte   `json:"qos"`
	Retain   bool   `json:"retain"`
}

func (p *MQTTProvider) Name() string {
	return "mqtt"
}

func (p *MQTTProvider) Validate() error {
	if p.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if p.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if p.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	return nil
}

func (p *MQTTProvider) Send(ctx context.Context, n *Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(p.Broker).
		SetClientID("coresight-" + uuid.NewString()[:8]).
		SetConnectTimeout(mqttTimeout).
		SetAutoReconnect(false)
	if p.Username != "" {
		opts.SetUsername(p.Username)
		opts.SetPassword(p.Password)
	}

	client := mqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		// Stops the connect attempt still running in the background.
		client.Disconnect(0)
		return fmt.Errorf("connect mqtt broker: %w", err)
	}
	defer client.Disconnect(250)

	if err := waitToken(ctx, client.Publish(p.Topic, p.QoS, p.Retain, payload)); err != nil {
		return fmt.Errorf("publish mqtt: %w", err)
	}
	return nil
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttTimeout):
		return fmt.Errorf("timed out after %s", mqttTimeout)
	}
}
