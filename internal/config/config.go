package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

const (
	BlobProviderLocal = "local"
	BlobProviderS3    = "s3"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	Blob     BlobConfig     `yaml:"blob"`
	Logging  LoggingConfig  `yaml:"logging"`
	Worker   WorkerConfig   `yaml:"worker"`
	Queue    QueueConfig    `yaml:"queue"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectRetries  int           `yaml:"connect_retries"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	User       string            `yaml:"user"`
	Password   string            `yaml:"password"`
	VHost      string            `yaml:"vhost"`
	Exchange   ExchangeConfig    `yaml:"exchange"`
	Queue      RabbitQueueConfig `yaml:"queue"`
	RoutingKey string            `yaml:"routing_key"`
	Connection ConnectionConfig  `yaml:"connection"`
	Publish    PublishConfig     `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// RabbitQueueConfig holds RabbitMQ queue configuration
type RabbitQueueConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"` // classic or quorum
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// RedisConfig holds the dedup window store settings.
// An empty Addr keeps dedup state in process memory.
type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	KeyPrefix   string        `yaml:"key_prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// BlobConfig selects and configures the result blob store
type BlobConfig struct {
	Provider string          `yaml:"provider"` // local or s3
	Local    LocalBlobConfig `yaml:"local"`
	S3       S3BlobConfig    `yaml:"s3"`
}

// LocalBlobConfig holds filesystem blob store settings
type LocalBlobConfig struct {
	Root    string `yaml:"root"`
	BaseURL string `yaml:"base_url"`
}

// S3BlobConfig holds S3 blob store settings
type S3BlobConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PublicEndpoint  string `yaml:"public_endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	NoColor      bool   `yaml:"no_color"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	WaitTime        time.Duration `yaml:"wait_time"`
	ErrorBackoff    time.Duration `yaml:"error_backoff"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	MaxReceiveCount int           `yaml:"max_receive_count"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RenderMinDelay  time.Duration `yaml:"render_min_delay"`
	RenderMaxDelay  time.Duration `yaml:"render_max_delay"`
}

// QueueConfig holds ordering and lease settings shared by producer and consumer
type QueueConfig struct {
	GroupKey     string        `yaml:"group_key"`
	Lease        time.Duration `yaml:"lease"`
	DedupWindow  time.Duration `yaml:"dedup_window"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Load reads and parses the configuration file and fills in defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills unset fields with their default values
func (c *Config) ApplyDefaults() {
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.ConnectRetries <= 0 {
		c.Database.ConnectRetries = 5
	}
	if c.Database.RetryInterval <= 0 {
		c.Database.RetryInterval = 2 * time.Second
	}

	if c.RabbitMQ.VHost == "" {
		c.RabbitMQ.VHost = "/"
	}
	if c.RabbitMQ.Queue.Type == "" {
		c.RabbitMQ.Queue.Type = "classic"
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "render:dedup:"
	}

	if c.Blob.Provider == "" {
		c.Blob.Provider = BlobProviderLocal
	}
	if c.Blob.Local.Root == "" {
		c.Blob.Local.Root = "data/blobs"
	}
	if c.Blob.S3.Region == "" {
		c.Blob.S3.Region = "us-east-1"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 1
	}
	if c.Worker.WaitTime <= 0 {
		c.Worker.WaitTime = 20 * time.Second
	}
	if c.Worker.ErrorBackoff <= 0 {
		c.Worker.ErrorBackoff = 5 * time.Second
	}
	if c.Worker.JobTimeout <= 0 {
		c.Worker.JobTimeout = 4 * time.Minute
	}
	if c.Worker.MaxReceiveCount <= 0 {
		c.Worker.MaxReceiveCount = 5
	}
	if c.Worker.ShutdownTimeout <= 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Worker.RenderMinDelay <= 0 && c.Worker.RenderMaxDelay <= 0 {
		c.Worker.RenderMinDelay = 500 * time.Millisecond
		c.Worker.RenderMaxDelay = time.Second
	}

	if c.Queue.GroupKey == "" {
		c.Queue.GroupKey = "global-render-tasks"
	}
	if c.Queue.Lease <= 0 {
		c.Queue.Lease = 5 * time.Minute
	}
	if c.Queue.DedupWindow <= 0 {
		c.Queue.DedupWindow = 5 * time.Minute
	}
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = 200 * time.Millisecond
	}
}

// ValidateAPIConfig checks the settings the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return errors.Join(
		c.validateDatabase(),
		c.validateRabbitMQ(),
		c.validateBlob(),
		c.validateQueue(),
	)
}

// ValidateWorkerConfig checks the settings the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := errors.Join(
		c.validateDatabase(),
		c.validateRabbitMQ(),
		c.validateBlob(),
		c.validateQueue(),
	); err != nil {
		return err
	}

	if c.Worker.JobTimeout >= c.Queue.Lease {
		return fmt.Errorf("worker job_timeout (%s) must be shorter than queue lease (%s)", c.Worker.JobTimeout, c.Queue.Lease)
	}

	if c.Worker.RenderMaxDelay < c.Worker.RenderMinDelay {
		return fmt.Errorf("worker render_max_delay must not be less than render_min_delay")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	switch c.RabbitMQ.Queue.Type {
	case "classic", "quorum":
	default:
		return fmt.Errorf("invalid rabbitmq queue type: %q (must be classic or quorum)", c.RabbitMQ.Queue.Type)
	}

	return nil
}

func (c *Config) validateBlob() error {
	switch c.Blob.Provider {
	case BlobProviderLocal:
		if c.Blob.Local.BaseURL == "" {
			return fmt.Errorf("blob local base_url is required")
		}
	case BlobProviderS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob s3 bucket is required")
		}
	default:
		return fmt.Errorf("invalid blob provider: %q (must be %s or %s)", c.Blob.Provider, BlobProviderLocal, BlobProviderS3)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.GroupKey == "" {
		return fmt.Errorf("queue group_key is required")
	}
	return nil
}
