package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	QueueName          string
	QueueType          string // classic or quorum
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RoutingKey         string
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	ConnectionTimeout  time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// Client represents a RabbitMQ client.
//
// mu guards every field below it. A dropped channel is re-dialed by the next
// Publish, Get or Inspect. Generation changes on every successful dial, so
// delivery tags handed out by an earlier channel can be recognised as void.
type Client struct {
	config *Config
	logger *slog.Logger

	mu          sync.Mutex
	conn        *amqp.Connection
	channel     *amqp.Channel
	closeChan   chan *amqp.Error
	isConnected bool
	closed      bool
	generation  uint64
}

// NewClient creates a new RabbitMQ client and declares its topology
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	client.mu.Lock()
	err := client.connect()
	client.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// connect establishes connection to RabbitMQ with retry logic. Callers hold c.mu.
func (c *Client) connect() error {
	var err error

	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectionTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}

	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		c.conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			c.logger.Info("Successfully connected to RabbitMQ")
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to setup exchange and queue: %w", err)
	}

	c.closeChan = make(chan *amqp.Error, 1)
	c.channel.NotifyClose(c.closeChan)
	c.isConnected = true
	c.generation++

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
		slog.String("queue_type", c.queueType()),
		slog.Uint64("generation", c.generation),
	)

	return nil
}

// ensureConnected re-dials when the channel or connection has dropped.
// Callers hold c.mu.
func (c *Client) ensureConnected() error {
	if c.closed {
		return fmt.Errorf("rabbitmq client is closed")
	}
	if c.connected() {
		return nil
	}

	c.logger.Warn("RabbitMQ channel lost, reconnecting")
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Close()
	}

	if err := c.connect(); err != nil {
		return fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
	}
	return nil
}

// connected reports whether the current channel is usable. Callers hold c.mu.
func (c *Client) connected() bool {
	if !c.isConnected || c.conn == nil || c.conn.IsClosed() {
		c.isConnected = false
		return false
	}
	select {
	case amqpErr := <-c.closeChan:
		c.logger.Error("RabbitMQ channel closed",
			slog.Any("error", amqpErr),
		)
		c.isConnected = false
		return false
	default:
		return true
	}
}

func (c *Client) queueType() string {
	if c.config.QueueType == "" {
		return amqp.QueueTypeClassic
	}
	return c.config.QueueType
}

// setup declares exchange, queue, and bindings
func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,       // name
		c.config.ExchangeType,       // type
		c.config.ExchangeDurable,    // durable
		c.config.ExchangeAutoDelete, // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.config.QueueName,       // name
		c.config.QueueDurable,    // durable
		c.config.QueueAutoDelete, // auto-delete
		c.config.QueueExclusive,  // exclusive
		false,                    // no-wait
		amqp.Table{amqp.QueueTypeArg: c.queueType()},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.config.QueueName,    // queue name
		c.config.RoutingKey,   // routing key
		c.config.ExchangeName, // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Publish publishes a persistent message to the configured exchange
func (c *Client) Publish(ctx context.Context, msg amqp.Publishing) error {
	msg.DeliveryMode = amqp.Persistent
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	c.mu.Lock()
	if err := c.ensureConnected(); err != nil {
		c.mu.Unlock()
		return err
	}
	err := c.channel.PublishWithContext(
		ctx,
		c.config.ExchangeName, // exchange
		c.config.RoutingKey,   // routing key
		false,                 // mandatory
		false,                 // immediate
		msg,
	)
	if err != nil {
		c.isConnected = false
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Message published to RabbitMQ",
		slog.String("message_id", msg.MessageId),
		slog.Int("body_size", len(msg.Body)),
	)

	return nil
}

// PublishWithRetry publishes a message with retry logic and exponential backoff
func (c *Client) PublishWithRetry(ctx context.Context, msg amqp.Publishing) error {
	maxRetries := c.config.PublishRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	baseDelay := c.config.PublishRetryDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	backoffMult := c.config.PublishBackoffMult
	if backoffMult <= 0 {
		backoffMult = 2.0
	}

	var lastErr error
	delay := baseDelay
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := c.Publish(ctx, msg)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Successfully published message to RabbitMQ after retry",
					slog.Int("attempt", attempt+1),
					slog.String("message_id", msg.MessageId),
				)
			}
			return nil
		}

		lastErr = err

		if attempt < maxRetries {
			c.logger.Warn("Failed to publish message to RabbitMQ, retrying...",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", maxRetries),
				slog.Duration("retry_after", delay),
				slog.Any("error", err),
			)

			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			delay = time.Duration(float64(delay) * backoffMult)
		}
	}

	c.logger.Error("Failed to publish message to RabbitMQ after all retries",
		slog.Int("attempts", maxRetries+1),
		slog.Any("error", lastErr),
	)
	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries+1, lastErr)
}

// Get pulls a single message with manual acknowledgment. ok is false when the
// queue is empty.
func (c *Client) Get() (amqp.Delivery, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return amqp.Delivery{}, false, err
	}

	d, ok, err := c.channel.Get(c.config.QueueName, false)
	if err != nil {
		c.isConnected = false
		return amqp.Delivery{}, false, fmt.Errorf("failed to get message: %w", err)
	}
	return d, ok, nil
}

// Ack acknowledges a single delivery. Tags belong to the channel that
// delivered them, so Ack never reconnects.
func (c *Client) Ack(tag uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected() {
		return fmt.Errorf("failed to ack delivery %d: not connected to RabbitMQ", tag)
	}
	if err := c.channel.Ack(tag, false); err != nil {
		c.isConnected = false
		return fmt.Errorf("failed to ack delivery %d: %w", tag, err)
	}
	return nil
}

// Nack rejects a single delivery, optionally returning it to the queue
func (c *Client) Nack(tag uint64, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected() {
		return fmt.Errorf("failed to nack delivery %d: not connected to RabbitMQ", tag)
	}
	if err := c.channel.Nack(tag, false, requeue); err != nil {
		c.isConnected = false
		return fmt.Errorf("failed to nack delivery %d: %w", tag, err)
	}
	return nil
}

// Generation identifies the current channel
func (c *Client) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Inspect returns the queue depth and consumer count
func (c *Client) Inspect() (messages, consumers int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(); err != nil {
		return 0, 0, err
	}

	q, err := c.channel.QueueDeclarePassive(
		c.config.QueueName,
		c.config.QueueDurable,
		c.config.QueueAutoDelete,
		c.config.QueueExclusive,
		false,
		amqp.Table{amqp.QueueTypeArg: c.queueType()},
	)
	if err != nil {
		c.isConnected = false
		return 0, 0, fmt.Errorf("failed to inspect queue: %w", err)
	}
	return q.Messages, q.Consumers, nil
}

// QueueName returns the configured queue name
func (c *Client) QueueName() string {
	return c.config.QueueName
}

// Close closes the RabbitMQ connection. A closed client does not reconnect.
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.isConnected = false
	c.closed = true

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.connected()
}
