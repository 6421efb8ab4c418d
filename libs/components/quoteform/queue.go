package quoteform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Publisher writes a message to the submission topic. *mq.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

type clientReferenceKey struct{}

// WithClientReference attaches an idempotency key to ctx for QueueSender.
func WithClientReference(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, clientReferenceKey{}, strings.TrimSpace(ref))
}

// ClientReference returns the idempotency key carried by ctx, if any.
func ClientReference(ctx context.Context) string {
	ref, _ := ctx.Value(clientReferenceKey{}).(string)
	return ref
}

type submissionMessage struct {
	SubmissionID string `json:"submissionId"`
}

// QueueSender persists each record as a pending submission and publishes its
// id for the worker.
type QueueSender struct {
	store     SubmissionStore
	publisher Publisher
	log       *zap.Logger
}

// NewQueueSender constructs a queue-backed sender.
func NewQueueSender(store SubmissionStore, publisher Publisher, log *zap.Logger) *QueueSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueSender{store: store, publisher: publisher, log: log}
}

// Send implements Sender. A client reference on ctx makes the call idempotent:
// a pending or completed submission is acknowledged again, a failed one is
// queued once more.
func (q *QueueSender) Send(ctx context.Context, record Record) (Ack, error) {
	submission, err := q.Enqueue(ctx, ClientReference(ctx), record)
	if err != nil {
		return Ack{}, err
	}
	return submission.ToAck(), nil
}

// Enqueue persists record under ref and publishes it.
func (q *QueueSender) Enqueue(ctx context.Context, ref string, record Record) (*QuoteSubmission, error) {
	if q == nil || q.store == nil {
		return nil, errors.New("quote submissions are not configured")
	}

	ref = strings.TrimSpace(ref)
	if ref != "" {
		existing, err := q.store.FindByClientReference(ctx, ref)
		switch {
		case err == nil:
			return q.resume(ctx, existing, record)
		case !IsNotFound(err):
			return nil, err
		}
	}

	submission := &QuoteSubmission{
		ClientReference: ref,
		Status:          SubmissionPending,
		Payload:         payloadFromRecord(record),
	}
	if err := q.store.Create(ctx, submission); err != nil {
		return nil, err
	}
	if err := q.publishOrFail(ctx, submission); err != nil {
		return nil, err
	}
	q.log.Info("quote submission queued",
		zap.String("submission", submission.ID),
		zap.String("reference", submission.ClientReference),
	)
	return submission, nil
}

func (q *QueueSender) resume(ctx context.Context, existing *QuoteSubmission, record Record) (*QuoteSubmission, error) {
	if existing.Status != SubmissionFailed {
		q.log.Debug("quote submission already known",
			zap.String("submission", existing.ID),
			zap.String("status", existing.Status),
		)
		return existing, nil
	}

	existing.Status = SubmissionPending
	existing.ErrorMessage = ""
	existing.CompletedAt = nil
	existing.Payload = payloadFromRecord(record)
	if err := q.store.Save(ctx, existing); err != nil {
		return nil, err
	}
	if err := q.publishOrFail(ctx, existing); err != nil {
		return nil, err
	}
	q.log.Info("quote submission requeued", zap.String("submission", existing.ID))
	return existing, nil
}

func (q *QueueSender) publishOrFail(ctx context.Context, submission *QuoteSubmission) error {
	err := q.publish(ctx, submission)
	if err == nil {
		return nil
	}
	submission.Status = SubmissionFailed
	submission.ErrorMessage = err.Error()
	if saveErr := q.store.Save(context.WithoutCancel(ctx), submission); saveErr != nil {
		q.log.Error("persist publish failure", zap.String("submission", submission.ID), zap.Error(saveErr))
	}
	return err
}

func (q *QueueSender) publish(ctx context.Context, submission *QuoteSubmission) error {
	if q.publisher == nil {
		return errors.New("queue producer not configured")
	}

	payload, err := json.Marshal(submissionMessage{SubmissionID: submission.ID})
	if err != nil {
		return fmt.Errorf("marshal submission payload: %w", err)
	}

	return q.publisher.Publish(ctx, submission.ID, payload, map[string]string{
		"submitted_at": submission.CreatedAt.Format(time.RFC3339Nano),
	})
}

// Lookup fetches a submission by ID.
func (q *QueueSender) Lookup(ctx context.Context, id string) (*QuoteSubmission, error) {
	if q == nil || q.store == nil {
		return nil, errors.New("quote submissions are not configured")
	}
	return q.store.FindByID(ctx, id)
}

// Metrics exposes queue statistics for observability.
func (q *QueueSender) Metrics(ctx context.Context) (SubmissionMetrics, error) {
	if q == nil || q.store == nil {
		return SubmissionMetrics{}, errors.New("quote submissions are not configured")
	}
	return q.store.Metrics(ctx)
}
