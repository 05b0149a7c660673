// Package bootstrap builds the shared clients and collaborators from config.
// The api, worker and admin binaries all wire through it.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/render-queue/internal/blob"
	"github.com/cuongbtq/render-queue/internal/config"
	"github.com/cuongbtq/render-queue/internal/queue"
	"github.com/cuongbtq/render-queue/shared/logger"
	"github.com/cuongbtq/render-queue/shared/postgresql"
	"github.com/cuongbtq/render-queue/shared/rabbitmq"
	"github.com/cuongbtq/render-queue/shared/redis"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig, service string) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		NoColor:      cfg.NoColor,
		Service:      service,
	}

	return logger.New(loggerCfg)
}

// InitPostgreSQL initializes the PostgreSQL database client
func InitPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectRetries:  cfg.ConnectRetries,
		RetryInterval:   cfg.RetryInterval,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// RabbitMQConfig maps the YAML section onto the client configuration
func RabbitMQConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueType:          cfg.Queue.Type,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
}

// InitRabbitMQ initializes the RabbitMQ client and declares the topology
func InitRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(RabbitMQConfig(cfg), logger)
}

// InitRedis connects to Redis. It returns nil when no address is configured.
func InitRedis(cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	return redis.NewClient(&redis.Config{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}, logger)
}

// QueueOptions maps the YAML queue section onto queue.Options
func QueueOptions(cfg *config.QueueConfig) queue.Options {
	return queue.Options{
		Lease:        cfg.Lease,
		DedupWindow:  cfg.DedupWindow,
		PollInterval: cfg.PollInterval,
	}
}

// NewDeduper keeps the dedup window in Redis when a client is available and
// in process memory otherwise
func NewDeduper(redisClient *redis.Client, cfg *config.Config) queue.Deduper {
	if redisClient == nil {
		return queue.NewMemoryDeduper(cfg.Queue.DedupWindow)
	}
	return queue.NewRedisDeduper(redisClient.GetClient(), cfg.Redis.KeyPrefix, cfg.Queue.DedupWindow)
}

// NewRenderQueue builds the broker backed render queue
func NewRenderQueue(rabbitClient *rabbitmq.Client, redisClient *redis.Client, cfg *config.Config, logger *slog.Logger) *queue.RabbitQueue {
	return queue.NewRabbitQueue(
		rabbitClient,
		NewDeduper(redisClient, cfg),
		QueueOptions(&cfg.Queue),
		logger,
	)
}

// NewBlobStore creates the configured result blob store
func NewBlobStore(ctx context.Context, cfg *config.BlobConfig) (blob.Store, error) {
	switch cfg.Provider {
	case config.BlobProviderLocal, "":
		return blob.NewLocalStore(cfg.Local.Root, cfg.Local.BaseURL), nil
	case config.BlobProviderS3:
		return blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PublicEndpoint:  cfg.S3.PublicEndpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown blob provider: %s", cfg.Provider)
	}
}
