package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithDatabase configures the metadata repository
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != TypeMemory && dbType != TypePostgres {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == TypePostgres && url == "" {
			return fmt.Errorf("database url is required for postgres")
		}
		c.DB.Type = dbType
		c.DB.URL = url
		return nil
	}
}

// WithDatabaseSchema sets the Postgres schema used as search_path
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DB.Schema = schema
		return nil
	}
}

// WithMemoryStorage keeps encrypted objects in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage.Type = TypeMemory
		return nil
	}
}

// WithS3Storage stores encrypted objects in an S3-compatible bucket
func WithS3Storage(bucket, region, endpoint string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.Storage.Type = TypeS3
		c.Storage.Bucket = bucket
		if region != "" {
			c.Storage.Region = region
		}
		if endpoint != "" {
			c.Storage.Endpoint = endpoint
			c.Storage.UsePathStyle = true
		}
		return nil
	}
}

// WithKafka publishes durable events to a Kafka topic
func WithKafka(topic string, brokers ...string) Option {
	return func(c *ServerConfig) error {
		if len(brokers) == 0 {
			return fmt.Errorf("at least one kafka broker is required")
		}
		c.Events.DurableType = TypeKafka
		c.Events.KafkaBrokers = brokers
		if topic != "" {
			c.Events.KafkaTopic = topic
		}
		return nil
	}
}

// WithSecrets sets the encryption and token signing secrets
func WithSecrets(encryption, jwt string) Option {
	return func(c *ServerConfig) error {
		c.EncryptionSecret = encryption
		c.JWTSecret = jwt
		return nil
	}
}

// WithCallTimeout bounds every external call
func WithCallTimeout(d time.Duration) Option {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("call timeout must be positive")
		}
		c.CallTimeout = d
		return nil
	}
}

// WithMaxUploadSize sets the upload limit in bytes
func WithMaxUploadSize(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload size must be positive")
		}
		c.MaxUploadSize = n
		return nil
	}
}

// WithPresign sets the download URL lifetime and how many URLs are cached
func WithPresign(ttl time.Duration, cacheSize int) Option {
	return func(c *ServerConfig) error {
		if ttl <= 0 {
			return fmt.Errorf("presign ttl must be positive")
		}
		c.PresignTTL = ttl
		c.PresignCacheSize = cacheSize
		return nil
	}
}
