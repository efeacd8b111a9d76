package rabbitmq

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"careportal/internal/models"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AccountEventsQueue is the durable queue carrying account lifecycle events.
const AccountEventsQueue = "account_events"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL    string
	Logger *zap.Logger
}

// NewClient connects to RabbitMQ, opens a channel and declares the account
// events queue.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := declareQueue(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", AccountEventsQueue, err)
	}

	logger.Info("rabbitmq client connected", zap.String("queue", AccountEventsQueue))

	return &Client{
		conn:    conn,
		channel: ch,
		logger:  logger.Named("rabbitmq"),
	}, nil
}

func declareQueue(ch *amqp.Channel) (amqp.Queue, error) {
	return ch.QueueDeclare(
		AccountEventsQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing RabbitMQ client: %v", errs)
	}
	return nil
}

// PublishAccountEvent publishes event as persistent JSON on the account
// events queue.
func (c *Client) PublishAccountEvent(event models.AccountEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	body, err := EncodeAccountEvent(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",                 // default exchange
		AccountEventsQueue, // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("account event sent", zap.String("type", event.Type), zap.String("account_id", event.AccountID))
	return nil
}

// ConsumeAccountEvents delivers decoded account events to handler in a
// goroutine. A handler error nacks the message without requeueing it.
func (c *Client) ConsumeAccountEvents(handler func(models.AccountEvent) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	queue, err := declareQueue(c.channel)
	if err != nil {
		return fmt.Errorf("failed to declare queue for consuming: %w", err)
	}

	msgs, err := c.channel.Consume(
		queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := c.handleDelivery(msg, handler); err != nil {
				c.logger.Warn("account event rejected", zap.Uint64("tag", msg.DeliveryTag), zap.Error(err))
				if nackErr := msg.Nack(false, false); nackErr != nil {
					c.logger.Error("failed to nack message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(nackErr))
				}
				continue
			}
			if ackErr := msg.Ack(false); ackErr != nil {
				c.logger.Error("failed to ack message", zap.Uint64("tag", msg.DeliveryTag), zap.Error(ackErr))
			}
		}
	}()

	return nil
}

func (c *Client) handleDelivery(msg amqp.Delivery, handler func(models.AccountEvent) error) error {
	event, err := DecodeAccountEvent(msg.Body)
	if err != nil {
		return err
	}
	return handler(event)
}

// EncodeAccountEvent marshals an event for the wire.
func EncodeAccountEvent(event models.AccountEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account event: %w", err)
	}
	return body, nil
}

// DecodeAccountEvent parses an event received from the queue.
func DecodeAccountEvent(body []byte) (models.AccountEvent, error) {
	var event models.AccountEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return models.AccountEvent{}, fmt.Errorf("failed to decode account event: %w", err)
	}
	if event.Type == "" {
		return models.AccountEvent{}, fmt.Errorf("account event has no type")
	}
	return event, nil
}
