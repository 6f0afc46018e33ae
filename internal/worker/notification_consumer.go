package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"storybot-server/internal/interfaces"
	"storybot-server/internal/messaging"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const deliveryTimeout = 30 * time.Second

// NotificationConsumer читает исходящие уведомления из очереди и доставляет их
// через мессенджер.
type NotificationConsumer struct {
	conn        *amqp.Connection
	logger      *zap.Logger
	queueName   string
	concurrency int
	dispatcher  *Dispatcher
	stopChannel chan struct{}
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
}

func NewNotificationConsumer(conn *amqp.Connection, logger *zap.Logger, queueName string, concurrency int, dispatcher *Dispatcher) *NotificationConsumer {
	return &NotificationConsumer{
		conn:        conn,
		logger:      logger.Named("NotificationConsumer"),
		queueName:   queueName,
		concurrency: concurrency,
		dispatcher:  dispatcher,
		stopChannel: make(chan struct{}),
	}
}

// Start блокируется до вызова Stop. Падение канала сообщений завершает воркеров.
func (c *NotificationConsumer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("не удалось открыть канал RabbitMQ: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("не удалось объявить очередь '%s': %w", c.queueName, err)
	}

	if err := ch.Qos(c.concurrency, 0, false); err != nil {
		return fmt.Errorf("не удалось установить QoS: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"storybot-notification-consumer", // consumer tag
		false,                            // auto-ack = false
		false,                            // exclusive
		false,                            // no-local
		false,                            // no-wait
		nil,                              // args
	)
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать консьюмера: %w", err)
	}

	c.logger.Info("Консьюмер уведомлений запущен", zap.String("queue", q.Name), zap.Int("concurrency", c.concurrency))

	c.wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(workerID int) {
			defer c.wg.Done()
			logger := c.logger.With(zap.Int("worker_id", workerID))
			for {
				select {
				case <-ctx.Done():
					return
				case <-c.stopChannel:
					return
				case d, ok := <-msgs:
					if !ok {
						logger.Info("Канал сообщений закрыт, воркер завершает работу")
						return
					}
					c.dispatcher.ProcessMessage(ctx, d)
				}
			}
		}(i)
	}

	<-c.stopChannel
	c.cancelFunc()
	c.wg.Wait()
	c.logger.Info("Консьюмер уведомлений остановлен")
	return nil
}

func (c *NotificationConsumer) Stop() {
	close(c.stopChannel)
}

// Dispatcher доставляет одно уведомление. Для уведомлений о ходе действует
// откат: если личное сообщение не доставлено (закрытые DM), в канал истории
// уходит анонс с упоминанием писателя.
type Dispatcher struct {
	logger    *zap.Logger
	messenger interfaces.Messenger
}

func NewDispatcher(logger *zap.Logger, messenger interfaces.Messenger) *Dispatcher {
	return &Dispatcher{
		logger:    logger.Named("NotificationDispatcher"),
		messenger: messenger,
	}
}

func (p *Dispatcher) ProcessMessage(ctx context.Context, d amqp.Delivery) {
	var payload messaging.NotificationPayload
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		p.logger.Error("Ошибка десериализации уведомления",
			zap.Error(err),
			zap.ByteString("body", d.Body),
			zap.Uint64("delivery_tag", d.DeliveryTag))
		// Битый payload не станет валидным при повторе: nack без requeue.
		if ackErr := d.Nack(false, false); ackErr != nil {
			p.logger.Error("Ошибка Nack сообщения", zap.Error(ackErr), zap.Uint64("delivery_tag", d.DeliveryTag))
		}
		return
	}

	deliverCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	if err := p.deliver(deliverCtx, payload); err != nil {
		p.logger.Error("Ошибка доставки уведомления",
			zap.Error(err),
			zap.String("kind", string(payload.Kind)),
			zap.String("storyID", payload.StoryID),
			zap.Uint64("delivery_tag", d.DeliveryTag))
		if ackErr := d.Nack(false, false); ackErr != nil {
			p.logger.Error("Ошибка Nack сообщения", zap.Error(ackErr), zap.Uint64("delivery_tag", d.DeliveryTag))
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		p.logger.Error("Ошибка Ack сообщения", zap.Error(ackErr), zap.Uint64("delivery_tag", d.DeliveryTag))
	}
}

func (p *Dispatcher) deliver(ctx context.Context, payload messaging.NotificationPayload) error {
	switch payload.Kind {
	case messaging.NotificationKindTurn:
		if payload.PreferDM {
			err := p.messenger.SendDirectMessage(ctx, payload.UserID, payload.DirectText)
			if err == nil {
				return nil
			}
			// Закрытые личные сообщения — штатная ситуация: откатываемся на упоминание.
			p.logger.Info("DM не доставлен, откат на упоминание в канале",
				zap.String("userID", payload.UserID),
				zap.String("storyID", payload.StoryID),
				zap.Error(err))
		}
		return p.messenger.PostMessage(ctx, payload.ChannelID, payload.ChannelText)
	case messaging.NotificationKindAnnouncement:
		return p.messenger.PostMessage(ctx, payload.ChannelID, payload.ChannelText)
	default:
		return fmt.Errorf("неизвестный тип уведомления: %s", payload.Kind)
	}
}
