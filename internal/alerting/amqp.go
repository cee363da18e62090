package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPProvider publishes each notice as JSON to a RabbitMQ exchange. The
// routing key defaults to "alerts.<severity>.<type>", with "resolved" in
// place of the severity for recoveries.
type AMQPProvider struct {
	URL        string `json:"url"`
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routing_key"`
}

func (p *AMQPProvider) Name() string {
	return "amqp"
}

func (p *AMQPProvider) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("url is required")
	}
	if _, err := amqp.ParseURI(p.URL); err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	return nil
}

func (p *AMQPProvider) routingKey(n *Notice) string {
	if p.RoutingKey != "" {
		return p.RoutingKey
	}
	level := n.Alert.Severity
	if n.Resolved {
		level = "resolved"
	}
	return fmt.Sprintf("alerts.%s.%s", level, n.Alert.Type)
}

func (p *AMQPProvider) Send(ctx context.Context, n *Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, p.Exchange, p.routingKey(n), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.Alert.CreatedAt,
		Type:         n.Alert.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish amqp: %w", err)
	}
	return nil
}
