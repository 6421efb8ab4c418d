package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/southernunderground/quoteform/libs/components/quoteform"
	"github.com/southernunderground/quoteform/libs/shared/config"
	"github.com/southernunderground/quoteform/libs/shared/database"
	"github.com/southernunderground/quoteform/libs/shared/logging"
	"github.com/southernunderground/quoteform/libs/shared/mq"
)

const (
	SenderSimulated = "simulated"
	SenderWebhook   = "webhook"
	SenderQueue     = "queue"
)

const defaultWebhookTimeout = 15 * time.Second

// Backend is the send capability chosen by configuration plus whatever it
// holds open.
type Backend struct {
	Sender      quoteform.Sender
	Coordinator quoteform.SubmissionCoordinator
	Store       quoteform.SubmissionStore

	db       *gorm.DB
	producer *mq.Producer
}

// Close releases the database pool and Kafka writer, if any.
func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	if b.producer != nil {
		errs = append(errs, b.producer.Close())
	}
	if b.db != nil {
		errs = append(errs, database.Close(b.db))
	}
	return errors.Join(errs...)
}

// OpenBackend builds the sender named by cfg.Sender.
func OpenBackend(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*Backend, error) {
	log = logging.OrNop(log)

	switch strings.TrimSpace(cfg.Sender) {
	case "", SenderSimulated:
		log.Info("using simulated sender", zap.Duration("delay", cfg.SimulatedDelay))
		return &Backend{Sender: quoteform.SimulatedSender{Delay: cfg.SimulatedDelay}}, nil

	case SenderWebhook:
		if strings.TrimSpace(cfg.WebhookURL) == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required for the webhook sender")
		}
		timeout := defaultWebhookTimeout
		if cfg.SubmitTimeout > 0 {
			timeout = cfg.SubmitTimeout
		}
		log.Info("using webhook sender", zap.String("url", cfg.WebhookURL))
		return &Backend{Sender: quoteform.NewWebhookSender(cfg.WebhookURL, &http.Client{Timeout: timeout})}, nil

	case SenderQueue:
		store, db, err := OpenSubmissionStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		producer, err := mq.NewProducer(mq.ProducerConfig{
			Brokers:  cfg.KafkaBrokerList(),
			Topic:    cfg.KafkaTopic,
			ClientID: cfg.ServiceName + "-producer",
		}, log)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		sender := quoteform.NewQueueSender(store, producer, log.Named("queue"))
		log.Info("using queue sender", zap.String("topic", producer.Topic()))
		return &Backend{
			Sender:      sender,
			Coordinator: sender,
			Store:       store,
			db:          db,
			producer:    producer,
		}, nil

	default:
		return nil, fmt.Errorf("unknown SUBMIT_SENDER %q (want simulated, webhook or queue)", cfg.Sender)
	}
}

// OpenSubmissionStore connects to Postgres and migrates the submissions table.
func OpenSubmissionStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*quoteform.GormSubmissionRepository, *gorm.DB, error) {
	db, err := database.ConnectWithDSN(cfg.ServiceName, cfg.PostgresDSN, log)
	if err != nil {
		return nil, nil, err
	}
	repo := quoteform.NewSubmissionRepository(db)
	if err := repo.AutoMigrate(ctx); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("migrate quote submissions: %w", err)
	}
	return repo, db, nil
}

// NewWorkerConsumer wires a Kafka consumer to a QueueWorker over store.
func NewWorkerConsumer(cfg *config.AppConfig, store quoteform.SubmissionStore, log *zap.Logger) (*quoteform.QueueWorker, *mq.Consumer, error) {
	log = logging.OrNop(log)
	worker := quoteform.NewQueueWorker(store, log.Named("worker"))
	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Brokers:  cfg.KafkaBrokerList(),
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.ConsumerGroup(),
		ClientID: cfg.ServiceName + "-worker",
	}, worker.HandleMessage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return worker, consumer, nil
}
