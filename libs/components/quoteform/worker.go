package quoteform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/southernunderground/quoteform/libs/shared/mq"
)

// QueueWorker accepts queued submissions. It checks that the stored record
// still decodes and validates, then marks it completed.
type QueueWorker struct {
	store SubmissionStore
	log   *zap.Logger
	now   func() time.Time
}

// NewQueueWorker constructs a queue worker.
func NewQueueWorker(store SubmissionStore, log *zap.Logger) *QueueWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueWorker{store: store, log: log, now: time.Now}
}

// HandleMessage consumes a submission message from Kafka.
func (w *QueueWorker) HandleMessage(ctx context.Context, msg mq.Message) error {
	if w == nil || w.store == nil {
		return fmt.Errorf("quote worker not initialised")
	}

	var payload submissionMessage
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return fmt.Errorf("decode submission message: %w", err)
	}
	if strings.TrimSpace(payload.SubmissionID) == "" {
		return fmt.Errorf("submission id missing from message")
	}

	submission, err := w.store.FindByID(ctx, payload.SubmissionID)
	if err != nil {
		if IsNotFound(err) {
			w.log.Warn("submission not found, skipping", zap.String("submission", payload.SubmissionID))
			return nil
		}
		return err
	}

	if submission.Status == SubmissionCompleted {
		return nil
	}

	submission.Status = SubmissionProcessing
	submission.ErrorMessage = ""
	if err := w.store.Save(ctx, submission); err != nil {
		return err
	}

	if err := w.accept(submission); err != nil {
		submission.Status = SubmissionFailed
		submission.ErrorMessage = err.Error()
		if saveErr := w.store.Save(ctx, submission); saveErr != nil {
			w.log.Error("persist submission failure", zap.String("submission", submission.ID), zap.Error(saveErr))
		}
		return err
	}

	submission.Status = SubmissionCompleted
	now := w.now()
	submission.CompletedAt = &now
	if err := w.store.Save(ctx, submission); err != nil {
		return err
	}

	w.log.Info("processed quote submission", zap.String("submission", submission.ID))
	return nil
}

func (w *QueueWorker) accept(submission *QuoteSubmission) error {
	record, err := submission.ToRecord()
	if err != nil {
		return err
	}
	return Validate(record).Err()
}

// RunConsumer starts the provided consumer using the worker handler.
func (w *QueueWorker) RunConsumer(ctx context.Context, consumer *mq.Consumer) error {
	if consumer == nil {
		return fmt.Errorf("consumer is nil")
	}
	return consumer.Run(ctx)
}
