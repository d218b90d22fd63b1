package config

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vault/pkg/simplevault"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(WithSecrets("enc-secret", "jwt-secret"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, TypeMemory, cfg.DB.Type)
	assert.Equal(t, "vault", cfg.DB.Schema)
	assert.True(t, cfg.DB.AutoMigrate)
	assert.Equal(t, TypeMemory, cfg.Storage.Type)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.Equal(t, TypeMemory, cfg.Events.DurableType)
	assert.Equal(t, simplevault.DurableTopic, cfg.Events.KafkaTopic)
	assert.Equal(t, "storage-consumer", cfg.Events.KafkaGroup)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, simplevault.DefaultMaxUploadSize, cfg.MaxUploadSize)
	assert.Equal(t, time.Hour, cfg.PresignTTL)
	assert.Equal(t, 1024, cfg.PresignCacheSize)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("VAULT_PORT", "9090")
	t.Setenv("VAULT_ENCRYPTION_SECRET", "from-env")
	t.Setenv("VAULT_JWT_SECRET", "jwt-from-env")
	t.Setenv("VAULT_DURABLE_TYPE", "kafka")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("VAULT_CALL_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "from-env", cfg.EncryptionSecret)
	assert.Equal(t, TypeKafka, cfg.Events.DurableType)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
}

func TestLoad_OptionsOverrideEnv(t *testing.T) {
	t.Setenv("VAULT_PORT", "9090")

	cfg, err := Load(WithSecrets("enc", "jwt"), WithPort("7070"), WithS3Storage("vault-objects", "", "http://localhost:9000"))
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, TypeS3, cfg.Storage.Type)
	assert.Equal(t, "vault-objects", cfg.S3Config().Bucket)
	assert.True(t, cfg.S3Config().UsePathStyle)
}

func TestLoad_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"empty port", WithPort("")},
		{"unknown database", WithDatabase("mysql", "mysql://localhost")},
		{"postgres without url", WithDatabase(TypePostgres, "")},
		{"empty bucket", WithS3Storage("", "", "")},
		{"kafka without brokers", WithKafka("")},
		{"zero timeout", WithCallTimeout(0)},
		{"zero upload size", WithMaxUploadSize(0)},
		{"zero presign ttl", WithPresign(0, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithSecrets("enc", "jwt"), tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServerConfig)
		wantErr string
	}{
		{"valid", func(c *ServerConfig) {}, ""},
		{"missing encryption secret", func(c *ServerConfig) { c.EncryptionSecret = "" }, "encryption secret"},
		{"missing jwt secret", func(c *ServerConfig) { c.JWTSecret = "" }, "jwt secret"},
		{"unknown storage", func(c *ServerConfig) { c.Storage.Type = "fs" }, "storage type"},
		{"s3 without bucket", func(c *ServerConfig) { c.Storage.Type = TypeS3 }, "bucket"},
		{"kafka without brokers", func(c *ServerConfig) { c.Events.DurableType = TypeKafka }, "brokers"},
		{"unknown durable", func(c *ServerConfig) { c.Events.DurableType = "nats" }, "durable type"},
		{"postgres without url", func(c *ServerConfig) { c.DB.Type = TypePostgres }, "database url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(WithSecrets("enc", "jwt"))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuild_Memory(t *testing.T) {
	cfg, err := Load(WithSecrets("enc", "jwt"))
	require.NoError(t, err)

	ctx := context.Background()
	rt, err := cfg.Build(ctx, nil)
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Hub)
	require.NotNil(t, rt.Durable)

	owner := uuid.New()
	file, err := rt.Service.Upload(ctx, simplevault.UploadRequest{
		OwnerID:     owner,
		FileName:    "hello.txt",
		ContentType: "text/plain",
		Reader:      strings.NewReader("hello vault"),
	})
	require.NoError(t, err)

	download, err := rt.Service.OpenVersion(ctx, file.Latest().ID, owner)
	require.NoError(t, err)
	defer download.Body.Close()
	data, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello vault", string(data))

	url, err := rt.Service.GetDownloadURL(ctx, file.Latest().ID, owner)
	require.NoError(t, err)
	again, err := rt.Service.GetDownloadURL(ctx, file.Latest().ID, owner)
	require.NoError(t, err)
	assert.Equal(t, url, again, "second URL comes from the cache")
}

func TestBuild_LoggingDurableLog(t *testing.T) {
	t.Setenv("VAULT_DURABLE_TYPE", "log")
	cfg, err := Load(WithSecrets("enc", "jwt"))
	require.NoError(t, err)

	rt, err := cfg.Build(context.Background(), nil)
	require.NoError(t, err)
	defer rt.Close()
	assert.IsType(t, &simplevault.LoggingDurableLog{}, rt.Durable)
}
