package events

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type amqpPublisher struct {
	conn     *amqp.Connection
	exchange string
}

// NewAMQP dials the broker and declares a durable topic exchange.
func NewAMQP(url, exchange string) (Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &amqpPublisher{conn: conn, exchange: exchange}, nil
}

func (p *amqpPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	msg, err := toPublishing(env)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"key": key, "exchange": p.exchange}).Debug("[events] published")
	return nil
}

func (p *amqpPublisher) Close() error {
	return p.conn.Close()
}

func toPublishing(env Envelope) (amqp.Publishing, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return amqp.Publishing{}, err
	}
	cid := ""
	if env.Meta.CorrelationID != nil {
		cid = *env.Meta.CorrelationID
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: cid,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		Body:          body,
	}, nil
}
