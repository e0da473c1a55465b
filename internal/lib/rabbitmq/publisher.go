// Package rabbitmq содержит подключение к RabbitMQ и публикацию JSON сообщений.
package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// PublishMessage публикует сообщение как JSON с постоянной доставкой.
func PublishMessage(ch *amqp.Channel, exchange string, routingKey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ChannelPublisher публикует сообщения в открытый канал.
type ChannelPublisher struct {
	ch *amqp.Channel
}

// NewChannelPublisher создаёт ChannelPublisher.
func NewChannelPublisher(ch *amqp.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

// Publish публикует message в exchange с ключом routingKey.
func (p *ChannelPublisher) Publish(exchange, routingKey string, message any) error {
	return PublishMessage(p.ch, exchange, routingKey, message)
}
