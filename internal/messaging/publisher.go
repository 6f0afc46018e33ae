package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NotificationPublisher defines the interface for publishing outbound notifications.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, payload NotificationPayload) error
}

// rabbitMQNotificationPublisher implements NotificationPublisher for RabbitMQ.
type rabbitMQNotificationPublisher struct {
	channel   *amqp.Channel
	queueName string
}

// NewRabbitMQNotificationPublisher создает паблишер уведомлений. Паблишер сам
// объявляет durable-очередь, чтобы не зависеть от порядка запуска с воркером;
// параметры очереди должны совпадать с параметрами у консьюмера.
func NewRabbitMQNotificationPublisher(conn *amqp.Connection, queueName string) (NotificationPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("notification publisher: не удалось открыть канал: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("notification publisher: не удалось объявить очередь %s: %w", queueName, err)
	}
	return &rabbitMQNotificationPublisher{channel: ch, queueName: queueName}, nil
}

// PublishNotification сериализует payload и кладет его в очередь.
func (p *rabbitMQNotificationPublisher) PublishNotification(ctx context.Context, payload NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка маршалинга уведомления: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("ошибка публикации уведомления в очередь %s: %w", p.queueName, err)
	}
	return nil
}
