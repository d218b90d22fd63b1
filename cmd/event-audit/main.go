// Command event-audit consumes the durable file-event log and writes one
// structured log line per record.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-vault/pkg/simplevault"
	"github.com/tendant/simple-vault/pkg/simplevault/events/kafka"
)

type Config struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	Topic   string   `env:"KAFKA_TOPIC" env-default:"file-events"`
	Group   string   `env:"KAFKA_GROUP" env-default:"storage-consumer"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	group, err := kafka.NewConsumerGroup(config.Brokers, config.Group, config.Topic, logger)
	if err != nil {
		slog.Error("Failed to start consumer group", "err", err)
		os.Exit(1)
	}
	defer group.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Event audit consuming", "topic", config.Topic, "group", config.Group)
	err = group.Consume(ctx, func(ctx context.Context, record simplevault.DurableRecord) error {
		logger.InfoContext(ctx, "file event",
			"type", record.Type,
			"file_id", record.FileID,
			"user_id", record.UserID,
			"timestamp", record.Timestamp,
			"metadata", record.Metadata,
		)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("Consumer stopped", "err", err)
		os.Exit(1)
	}
}
