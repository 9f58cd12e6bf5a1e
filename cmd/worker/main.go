// Worker consumes activity entries from Kafka and archives them in Loki.
// Set KAFKA_BROKERS, AUDIT_KAFKA_TOPIC, KAFKA_GROUP_ID and LOKI_URL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"loandesk/backend/internal/config"
	"loandesk/backend/internal/logger"
	"loandesk/backend/internal/telemetry/loki"
)

const pushTimeout = 10 * time.Second

// messageReader is the subset of *kafka.Reader used by consume.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// pusher archives one raw activity message.
type pusher interface {
	PushActivityJSON(ctx context.Context, raw []byte) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		log.Fatal("worker: LOKI_URL is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.AuditKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker: consuming activity",
		zap.String("topic", cfg.AuditKafkaTopic), zap.String("group", cfg.KafkaGroupID), zap.String("loki", cfg.LokiURL))
	n := consume(ctx, reader, loki.NewClient(cfg.LokiURL, loki.DefaultJob, nil), log)
	log.Info("worker: stopped", zap.Int("archived", n))
}

// consume reads until ctx is done. Read and push failures are logged and skipped.
// Returns how many messages were archived.
func consume(ctx context.Context, reader messageReader, sink pusher, log *zap.Logger) int {
	archived := 0
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return archived
			}
			log.Warn("worker: kafka read error", zap.Error(err))
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := sink.PushActivityJSON(pushCtx, msg.Value); err != nil {
			log.Warn("worker: loki push failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		} else {
			archived++
		}
		cancel()
	}
}
