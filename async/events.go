package async

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// LifecycleEvent is published whenever a task crosses a state boundary, for
// operators who want to tail task activity without polling status().
type LifecycleEvent struct {
	TaskID      string `json:"task_id"`
	Kind        Kind   `json:"kind"`
	WorkspaceID string `json:"workspace_id"`
	State       State  `json:"state"`
}

// EventPublisher publishes LifecycleEvent messages to a durable queue. Entirely
// optional — the Runner works without one; when absent, operators fall back to
// polling status(). Grounded on the teacher's queue.RabbitMQService: a single
// connection and channel opened once at startup, one durable queue declared,
// JSON-encoded messages published with PublishMessage.
type EventPublisher struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	queueName  string
}

// NewEventPublisher connects to RabbitMQ and declares a durable queue for
// task lifecycle events.
func NewEventPublisher(url, queueName string) (*EventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	return &EventPublisher{connection: conn, channel: ch, queueName: queueName}, nil
}

// Publish emits a lifecycle event as a persistent JSON message.
func (p *EventPublisher) Publish(ev LifecycleEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}
	return p.channel.Publish("", p.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close releases the channel and connection.
func (p *EventPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.connection.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return p.connection.Close()
}
