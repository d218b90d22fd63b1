package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	s3storage "github.com/tendant/simple-vault/pkg/simplevault/storage/s3"
)

// Backend type names
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
	TypeS3       = "s3"
	TypeKafka    = "kafka"
	TypeLog      = "log"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// ServerConfig represents server configuration for the vault service.
// Every field can be set from the environment; options applied by Load
// override the environment.
type ServerConfig struct {
	Port        string `env:"VAULT_PORT" env-default:"8080"`
	Environment string `env:"VAULT_ENVIRONMENT" env-default:"development"`

	DB      DBConfig
	Storage StorageConfig
	Events  EventsConfig

	EncryptionSecret string        `env:"VAULT_ENCRYPTION_SECRET"`
	JWTSecret        string        `env:"VAULT_JWT_SECRET"`
	CallTimeout      time.Duration `env:"VAULT_CALL_TIMEOUT" env-default:"30s"`
	MaxUploadSize    int64         `env:"VAULT_MAX_UPLOAD_SIZE" env-default:"10485760"`
	PresignTTL       time.Duration `env:"VAULT_PRESIGN_TTL" env-default:"1h"`
	PresignCacheSize int           `env:"VAULT_PRESIGN_CACHE_SIZE" env-default:"1024"`
}

// DBConfig selects the metadata repository
type DBConfig struct {
	Type        string `env:"VAULT_DATABASE_TYPE" env-default:"memory"`
	URL         string `env:"DATABASE_URL"`
	Schema      string `env:"VAULT_DB_SCHEMA" env-default:"vault"`
	AutoMigrate bool   `env:"VAULT_DB_AUTO_MIGRATE" env-default:"true"`
}

// StorageConfig selects the object store
type StorageConfig struct {
	Type                   string `env:"VAULT_STORAGE_TYPE" env-default:"memory"`
	Endpoint               string `env:"AWS_S3_ENDPOINT"`
	Region                 string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	Bucket                 string `env:"AWS_S3_BUCKET"`
	AccessKeyID            string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey        string `env:"AWS_SECRET_ACCESS_KEY"`
	UsePathStyle           bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	CreateBucketIfNotExist bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
	EnableSSE              bool   `env:"AWS_S3_ENABLE_SSE" env-default:"false"`
	SSEAlgorithm           string `env:"AWS_S3_SSE_ALGORITHM"`
	SSEKMSKeyID            string `env:"AWS_S3_SSE_KMS_KEY_ID"`
}

// EventsConfig selects the durable event log
type EventsConfig struct {
	DurableType  string   `env:"VAULT_DURABLE_TYPE" env-default:"memory"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" env-default:"file-events"`
	KafkaGroup   string   `env:"KAFKA_GROUP" env-default:"storage-consumer"`
}

// Load reads the environment, applies opts on top and validates the result.
func Load(opts ...Option) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DB.Type {
	case TypeMemory:
	case TypePostgres:
		if c.DB.URL == "" {
			return errors.New("database url is required when using postgres")
		}
	default:
		return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", c.DB.Type)
	}

	switch c.Storage.Type {
	case TypeMemory:
	case TypeS3:
		if err := c.S3Config().Validate(); err != nil {
			return fmt.Errorf("invalid s3 storage: %w", err)
		}
	default:
		return fmt.Errorf("storage type must be 'memory' or 's3', got: %s", c.Storage.Type)
	}

	switch c.Events.DurableType {
	case TypeMemory, TypeLog:
	case TypeKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			return errors.New("kafka brokers are required when using kafka")
		}
	default:
		return fmt.Errorf("durable type must be 'memory', 'log' or 'kafka', got: %s", c.Events.DurableType)
	}

	if c.EncryptionSecret == "" {
		return errors.New("encryption secret is required")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.CallTimeout <= 0 {
		return errors.New("call timeout must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("max upload size must be positive")
	}
	if c.PresignTTL <= 0 {
		return errors.New("presign ttl must be positive")
	}
	return nil
}

// S3Config converts the storage settings for the S3 adapter
func (c *ServerConfig) S3Config() s3storage.Config {
	return s3storage.Config{
		Region:                 c.Storage.Region,
		Bucket:                 c.Storage.Bucket,
		AccessKeyID:            c.Storage.AccessKeyID,
		SecretAccessKey:        c.Storage.SecretAccessKey,
		Endpoint:               c.Storage.Endpoint,
		UsePathStyle:           c.Storage.UsePathStyle,
		EnableSSE:              c.Storage.EnableSSE,
		SSEAlgorithm:           c.Storage.SSEAlgorithm,
		SSEKMSKeyID:            c.Storage.SSEKMSKeyID,
		CreateBucketIfNotExist: c.Storage.CreateBucketIfNotExist,
	}
}
