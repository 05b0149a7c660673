package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "render_db", cfg.Database.Database)
				assert.Equal(t, 3, cfg.Database.ConnectRetries)
				assert.Equal(t, "render_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "render_tasks", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "quorum", cfg.RabbitMQ.Queue.Type)
				assert.Equal(t, 200*time.Millisecond, cfg.RabbitMQ.Publish.RetryInterval)
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, BlobProviderS3, cfg.Blob.Provider)
				assert.Equal(t, "render-results", cfg.Blob.S3.Bucket)
				assert.Equal(t, "http://localhost:4566", cfg.Blob.S3.Endpoint)
				assert.Equal(t, 4*time.Minute, cfg.Worker.JobTimeout)
				assert.Equal(t, 5*time.Minute, cfg.Queue.Lease)
				assert.Equal(t, "render-api", cfg.App.Name)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 5, cfg.Database.ConnectRetries)
	assert.Equal(t, "classic", cfg.RabbitMQ.Queue.Type)
	assert.Equal(t, "/", cfg.RabbitMQ.VHost)
	assert.Equal(t, BlobProviderLocal, cfg.Blob.Provider)
	assert.Equal(t, "data/blobs", cfg.Blob.Local.Root)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	assert.Equal(t, 1, cfg.Worker.BatchSize)
	assert.Equal(t, 20*time.Second, cfg.Worker.WaitTime)
	assert.Equal(t, 5*time.Second, cfg.Worker.ErrorBackoff)
	assert.Equal(t, 4*time.Minute, cfg.Worker.JobTimeout)
	assert.Equal(t, 5, cfg.Worker.MaxReceiveCount)
	assert.Equal(t, 500*time.Millisecond, cfg.Worker.RenderMinDelay)
	assert.Equal(t, time.Second, cfg.Worker.RenderMaxDelay)

	assert.Equal(t, "global-render-tasks", cfg.Queue.GroupKey)
	assert.Equal(t, 5*time.Minute, cfg.Queue.Lease)
	assert.Equal(t, 5*time.Minute, cfg.Queue.DedupWindow)

	require.NoError(t, cfg.ValidateAPIConfig())
	require.NoError(t, cfg.ValidateWorkerConfig())
}

// validConfig returns a config that passes both validations
func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "render_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "render_exchange",
			},
			Queue: RabbitQueueConfig{
				Name: "render_tasks",
			},
		},
		Blob: BlobConfig{
			Local: LocalBlobConfig{BaseURL: "http://localhost:8080/blobs"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "unknown queue type",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Type = "stream" },
			wantErr:   true,
			errString: "invalid rabbitmq queue type",
		},
		{
			name:      "unknown blob provider",
			mutate:    func(c *Config) { c.Blob.Provider = "gcs" },
			wantErr:   true,
			errString: "invalid blob provider",
		},
		{
			name:      "local blob without base url",
			mutate:    func(c *Config) { c.Blob.Local.BaseURL = "" },
			wantErr:   true,
			errString: "blob local base_url is required",
		},
		{
			name:      "s3 blob without bucket",
			mutate:    func(c *Config) { c.Blob.Provider = BlobProviderS3 },
			wantErr:   true,
			errString: "blob s3 bucket is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	t.Run("server port not required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = 0
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("job timeout must fit in lease", func(t *testing.T) {
		cfg := validConfig()
		cfg.Worker.JobTimeout = cfg.Queue.Lease
		err := cfg.ValidateWorkerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be shorter than queue lease")
	})

	t.Run("render delay bounds", func(t *testing.T) {
		cfg := validConfig()
		cfg.Worker.RenderMinDelay = 2 * time.Second
		cfg.Worker.RenderMaxDelay = time.Second
		require.Error(t, cfg.ValidateWorkerConfig())
	})

	t.Run("shared sections are checked", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Host = ""
		err := cfg.ValidateWorkerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database host is required")
	})
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestPortConstants(t *testing.T) {
	t.Run("port constants are correct", func(t *testing.T) {
		assert.Equal(t, 1, MinPort)
		assert.Equal(t, 65535, MaxPort)
	})

	t.Run("invalid port range", func(t *testing.T) {
		invalidPorts := []int{0, -1, 65536, 70000}
		for _, port := range invalidPorts {
			valid := port >= MinPort && port <= MaxPort
			assert.False(t, valid, "port %d should be invalid", port)
		}
	})
}
