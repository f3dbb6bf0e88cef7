package services

import (
	"encoding/json"

	"github.com/dionfirmansyah/yonsense/internal/models"
	"github.com/streadway/amqp"
)

const (
	// EventsExchange receives dispatch summaries.
	EventsExchange = "notifications.events"
	// DispatchRoutingKey routes push dispatch summaries.
	DispatchRoutingKey = "push.dispatched"
)

// Publisher publishes dispatch events to RabbitMQ.
type Publisher struct {
	conn     *amqp.Connection
	exchange string
}

// NewPublisher creates a new Publisher.
func NewPublisher(conn *amqp.Connection) *Publisher {
	return &Publisher{conn: conn, exchange: EventsExchange}
}

// PublishDispatch publishes one dispatch summary.
func (p *Publisher) PublishDispatch(event *models.DispatchEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return ch.Publish(
		p.exchange,         // exchange
		DispatchRoutingKey, // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: event.CorrelationID,
			MessageId:     event.RequestID,
			Timestamp:     event.CreatedAt,
			Body:          body,
		})
}
